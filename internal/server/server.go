// Package server is the HTTP boundary: the health endpoint and the LINE
// webhook callback that dispatches workflow executions.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"homebot/internal/line"
	"homebot/internal/workflow"
)

const maxWebhookBody = 1 << 20

// Starter starts workflow executions. client.Client satisfies it; tests use
// a fake.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Server serves the webhook boundary.
type Server struct {
	starter       Starter
	channelSecret string
	taskQueue     string
	logger        *slog.Logger
	httpServer    *http.Server
}

type Config struct {
	Addr          string
	ChannelSecret string
	TaskQueue     string
	Starter       Starter
	Logger        *slog.Logger
}

func New(cfg Config) *Server {
	s := &Server{
		starter:       cfg.Starter,
		channelSecret: cfg.ChannelSecret,
		taskQueue:     cfg.TaskQueue,
		logger:        cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /callback/line", s.handleLineCallback)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withRequestLog(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

func (s *Server) handleLineCallback(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), s.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	events, err := line.ParseWebhook(body, r.Header.Get(line.SignatureHeader), s.channelSecret)
	if errors.Is(err, line.ErrInvalidSignature) {
		logger.Warn("webhook signature verification failed")
		http.Error(w, "Invalid signature.", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Warn("webhook body unparseable", "error", err)
		http.Error(w, "Invalid body.", http.StatusBadRequest)
		return
	}

	for _, ev := range events {
		if !ev.IsTextMessage() {
			logger.Debug("ignoring webhook event", "type", ev.Type)
			continue
		}
		run, err := s.starter.ExecuteWorkflow(r.Context(), client.StartWorkflowOptions{
			ID:                    ev.WebhookEventID,
			TaskQueue:             s.taskQueue,
			WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_TERMINATE_IF_RUNNING,
		}, workflow.Name, workflow.Params{
			ReplyToken: ev.ReplyToken,
			QuoteToken: ev.Message.QuoteToken,
			Message:    ev.Message.Text,
		})
		if err != nil {
			logger.Error("failed to start workflow", "workflow_id", ev.WebhookEventID, "error", err)
			http.Error(w, "failed to dispatch", http.StatusInternalServerError)
			return
		}
		logger.Info("started workflow",
			"workflow_id", run.GetID(),
			"task_queue", s.taskQueue,
			"redelivery", ev.Redelivery)
	}

	w.WriteHeader(http.StatusAccepted)
	io.WriteString(w, "ACCEPTED")
}

type ctxKey int

const loggerKey ctxKey = 0

func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return fallback
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLog tags every request with a request id and logs its outcome.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With("request_id", uuid.NewString())

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), loggerKey, logger)
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
