package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdkactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	sdklog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"homebot/internal/activity"
	"homebot/internal/config"
	"homebot/internal/device"
	"homebot/internal/homeassistant"
	"homebot/internal/line"
	"homebot/internal/llm"
	"homebot/internal/logging"
	"homebot/internal/prompt"
	"homebot/internal/server"
	"homebot/internal/workflow"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "homebot",
		Short: "Smart-home LINE bot",
		Long:  "homebot receives LINE webhook events and handles each text message in a durable Temporal workflow: a guardrail check, an LLM agent that can control the air conditioner, and a reply.",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("homebot %s\n", version)
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and the Temporal worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "HTTP listen address")
	return cmd
}

const shutdownTimeout = 30 * time.Second

func runServe(addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    sdklog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("dial temporal at %s: %w", cfg.Temporal.Address, err)
	}
	defer temporalClient.Close()

	publisher, err := device.Connect(cfg.MQTT, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	lineClient := line.NewClient(line.ClientConfig{
		ChannelToken: cfg.Line.ChannelToken,
		Logger:       logger,
	})
	haClient := homeassistant.NewClient(homeassistant.ClientConfig{
		APIURL: cfg.HomeAssistant.APIURL,
		Token:  cfg.HomeAssistant.Token,
		Logger: logger,
	})
	provider := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		APIBase: cfg.OpenAI.APIBase,
		Model:   cfg.OpenAI.Model,
		Logger:  logger,
	})

	conv := &workflow.Conversation{
		Strategy:     cfg.Bot.Strategy,
		SoundBaseURL: cfg.Bot.SoundBaseURL,
	}
	if cfg.Bot.Strategy == config.StrategyAgent {
		lib, err := prompt.LoadFile(cfg.Bot.PromptPath)
		if err != nil {
			return err
		}
		instructions, err := lib.Join(map[string]any{"language": cfg.Bot.Language}, "system_prompt", "language_prompt")
		if err != nil {
			return err
		}
		conv.Instructions = instructions
	}

	w := worker.New(temporalClient, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(conv.HandleTextMessage, sdkworkflow.RegisterOptions{Name: workflow.Name})

	replies := activity.NewReplyActivities(lineClient, logger)
	devices := activity.NewDeviceActivities(publisher, haClient, logger)
	models := activity.NewModelActivities(provider, logger)
	w.RegisterActivityWithOptions(replies.ReplyText, sdkactivity.RegisterOptions{Name: activity.TypeReplyText})
	w.RegisterActivityWithOptions(replies.ReplyQuickReply, sdkactivity.RegisterOptions{Name: activity.TypeReplyQuickReply})
	w.RegisterActivityWithOptions(replies.ReplyAudio, sdkactivity.RegisterOptions{Name: activity.TypeReplyAudio})
	w.RegisterActivityWithOptions(devices.ControlAirConditioner, sdkactivity.RegisterOptions{Name: activity.TypeControlAirConditioner})
	w.RegisterActivityWithOptions(devices.CheckInnerDoor, sdkactivity.RegisterOptions{Name: activity.TypeCheckInnerDoor})
	w.RegisterActivityWithOptions(devices.CheckBedroomPresence, sdkactivity.RegisterOptions{Name: activity.TypeCheckBedroomPresence})
	w.RegisterActivityWithOptions(models.InvokeModel, sdkactivity.RegisterOptions{Name: activity.TypeInvokeModel})
	w.RegisterActivityWithOptions(models.ClassifyRequest, sdkactivity.RegisterOptions{Name: activity.TypeClassifyRequest})

	if err := w.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info("temporal worker started", "task_queue", cfg.Temporal.TaskQueue)

	srv := server.New(server.Config{
		Addr:          addr,
		ChannelSecret: cfg.Line.ChannelSecret,
		TaskQueue:     cfg.Temporal.TaskQueue,
		Starter:       temporalClient,
		Logger:        logger,
	})

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		w.Stop()
		return err
	case <-ctx.Done():
	}
	logger.Info("received exit signal, shutting down")

	// Serve loop first, then the worker; each phase gets a bounded timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		logger.Info("temporal worker stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn("temporal worker stop timed out")
	}
	return nil
}
