// Package hostevents subscribes to the host platform's file-change feed over
// WebSocket. When a file changes on the host, every viewer session showing it
// is stale and gets torn down.
package hostevents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/kicadview/kicadview/internal/events"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// SessionInvalidator tears down sessions tied to a changed source.
type SessionInvalidator interface {
	InvalidateBySource(sourceRef string) int
}

// fileChangeMessage is the payload of a "files" channel message.
type fileChangeMessage struct {
	Path   string `json:"path"`
	Action string `json:"action"`
}

// Client is the host file-change feed subscriber
type Client struct {
	url        string
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	mu         sync.RWMutex

	invalidator  SessionInvalidator
	eventManager *events.Manager
	log          zerolog.Logger

	stopChan chan struct{}
	stopped  bool
}

// NewClient creates a new file-change feed client
func NewClient(url string, invalidator SessionInvalidator, eventManager *events.Manager, log zerolog.Logger) *Client {
	return &Client{
		url:          url,
		invalidator:  invalidator,
		eventManager: eventManager,
		log:          log.With().Str("component", "hostevents").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start connects and begins the read loop. A failed initial connection is
// not fatal; reconnection continues in the background.
func (c *Client) Start() error {
	c.log.Info().Str("url", c.url).Msg("Starting host file-change feed client")

	if err := c.connect(); err != nil {
		c.log.Warn().Err(err).Msg("Initial feed connection failed, will retry in background")
		go c.reconnectLoop()
		return err
	}

	c.mu.RLock()
	ctx := c.connCtx
	c.mu.RUnlock()
	go c.readMessages(ctx)

	return nil
}

// Stop gracefully shuts down the feed client
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	c.mu.Unlock()

	c.log.Info().Msg("Stopping host file-change feed client")
	close(c.stopChan)
	return c.disconnect()
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial file-change feed: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	c.conn = conn
	c.connCtx = connCtx
	c.cancelFunc = connCancel

	if err := c.subscribe(connCtx); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "subscribe failed")
		c.conn = nil
		c.connCtx = nil
		c.cancelFunc = nil
		return fmt.Errorf("failed to subscribe to files channel: %w", err)
	}

	c.log.Info().Msg("Connected to host file-change feed")
	return nil
}

func (c *Client) disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if c.cancelFunc != nil {
		c.cancelFunc()
		c.cancelFunc = nil
	}

	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.conn = nil
	c.connCtx = nil

	if err != nil {
		return fmt.Errorf("error closing feed connection: %w", err)
	}
	return nil
}

// subscribe sends the subscription message for the files channel.
// Protocol: a JSON array naming the channels to join.
func (c *Client) subscribe(ctx context.Context) error {
	data, err := json.Marshal([]string{"files"})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to send subscription message: %w", err)
	}
	return nil
}

func (c *Client) readMessages(ctx context.Context) {
	defer func() {
		c.mu.RLock()
		stopped := c.stopped
		c.mu.RUnlock()
		if !stopped {
			go c.reconnectLoop()
		}
	}()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		msgType, message, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				c.log.Info().Int("status", int(closeStatus)).Msg("Feed connection closed normally")
			} else if ctx.Err() != nil {
				c.log.Debug().Msg("Feed read cancelled by context")
			} else {
				c.log.Error().Err(err).Msg("Unexpected feed read error")
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		if err := c.handleMessage(message); err != nil {
			c.log.Error().Err(err).Str("message", string(message)).Msg("Failed to handle feed message")
		}
	}
}

// handleMessage parses a ["channel", payload] message and dispatches
// file-change notifications.
func (c *Client) handleMessage(message []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(message, &raw); err != nil {
		return fmt.Errorf("failed to parse message array: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("message array too short: expected 2 elements, got %d", len(raw))
	}

	var channel string
	if err := json.Unmarshal(raw[0], &channel); err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}
	if channel != "files" {
		c.log.Debug().Str("channel", channel).Msg("Ignoring message from other channel")
		return nil
	}

	var change fileChangeMessage
	if err := json.Unmarshal(raw[1], &change); err != nil {
		return fmt.Errorf("failed to parse file change: %w", err)
	}
	if change.Path == "" {
		return fmt.Errorf("file change without a path")
	}

	closed := 0
	if c.invalidator != nil {
		closed = c.invalidator.InvalidateBySource(change.Path)
	}

	c.log.Debug().
		Str("path", change.Path).
		Str("action", change.Action).
		Int("sessions_closed", closed).
		Msg("Handled file change")

	if c.eventManager != nil {
		c.eventManager.EmitHostFileChanged(change.Path)
	}
	return nil
}

// reconnectLoop retries the connection with exponential backoff.
func (c *Client) reconnectLoop() {
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		delay := time.Duration(math.Min(
			float64(baseReconnectDelay)*math.Pow(2, float64(attempt-1)),
			float64(maxReconnectDelay),
		))

		c.log.Info().
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Scheduling feed reconnection")

		select {
		case <-c.stopChan:
			return
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("Feed reconnection failed")
			continue
		}

		c.mu.RLock()
		ctx := c.connCtx
		c.mu.RUnlock()
		go c.readMessages(ctx)
		return
	}

	c.log.Error().
		Int("attempts", maxReconnectAttempts).
		Msg("Giving up on feed reconnection; file changes will not invalidate sessions")
}
