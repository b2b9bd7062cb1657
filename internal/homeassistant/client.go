// Package homeassistant is a minimal REST client for reading entity states.
package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// State is the current state of one entity.
type State struct {
	EntityID string `json:"entity_id"`
	State    string `json:"state"`
}

// Client reads entity states from the Home Assistant REST API. One Client is
// shared across all concurrent activity invocations.
type Client struct {
	apiURL string
	token  string
	client *http.Client
	logger *slog.Logger
}

type ClientConfig struct {
	APIURL string // e.g. http://homeassistant.local:8123/api
	Token  string
	Logger *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		token:  cfg.Token,
		client: &http.Client{Timeout: defaultHTTPTimeout},
		logger: cfg.Logger,
	}
}

// GetState fetches the current state of the given entity.
func (c *Client) GetState(ctx context.Context, entityID string) (State, error) {
	url := fmt.Sprintf("%s/states/%s", c.apiURL, entityID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return State{}, fmt.Errorf("homeassistant: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return State{}, fmt.Errorf("homeassistant: get state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return State{}, fmt.Errorf("homeassistant: %s returned %d: %s", entityID, resp.StatusCode, string(body))
	}

	var state State
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return State{}, fmt.Errorf("homeassistant: decode state: %w", err)
	}

	c.logger.Debug("entity state read", "entity_id", state.EntityID, "state", state.State)
	return state, nil
}
