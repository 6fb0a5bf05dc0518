// Package api fetches the initial table state over REST.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minaorangina/rummy/protocol"
	"github.com/minaorangina/rummy/store"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// DefaultErrorMessage is used when the server gives no reason
const DefaultErrorMessage = "Failed to get game state"

// Error is a non-2xx response
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Client talks to the game REST API
type Client struct {
	base     *url.URL
	sessions store.SessionStore
	http     *http.Client
	log      *zap.Logger
}

// NewClient builds a client for baseURL authenticating with sessions
func NewClient(baseURL string, sessions store.SessionStore, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported api scheme %q", u.Scheme)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:     u,
		sessions: sessions,
		http:     &http.Client{Timeout: defaultTimeout},
		log:      log.Named("api"),
	}, nil
}

// GameState returns the masked table state for tableID
func (c *Client) GameState(ctx context.Context, tableID protocol.ID) (protocol.GameState, error) {
	var state protocol.GameState
	if tableID == "" {
		return state, errors.New("table id required")
	}

	endpoint := c.base.JoinPath("api", "rummy", "game", tableID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return state, err
	}
	req.Header.Set("Accept", "application/json")
	if token, err := store.Token(c.sessions); err == nil {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		c.log.Debug("requesting game state without a token", zap.Error(err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return state, fmt.Errorf("requesting game state: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return state, fmt.Errorf("reading game state: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode, Message: DefaultErrorMessage}
		var eb protocol.ErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		}
		c.log.Warn("game state request failed",
			zap.String("tableId", tableID.String()),
			zap.Int("status", resp.StatusCode),
			zap.String("error", apiErr.Message),
		)
		return state, apiErr
	}

	if err := json.Unmarshal(body, &state); err != nil {
		return state, fmt.Errorf("decoding game state: %w", err)
	}
	return state, nil
}
