package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"

	"github.com/dailysync/standup-bot/internal/bot"
)

// EventHandler consumes inbound events. bot.Dispatcher satisfies it.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev bot.InboundEvent)
}

// envelope is the Socket Mode frame wrapper.
type envelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Reason     string          `json:"reason"`
}

// eventsPayload is the events_api payload slice we care about.
type eventsPayload struct {
	Event struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype"`
		User    string `json:"user"`
		BotID   string `json:"bot_id"`
		Channel string `json:"channel"`
		Text    string `json:"text"`
	} `json:"event"`
}

// SocketListener maintains a Socket Mode connection and feeds message
// events to the handler. Each event is dispatched on its own goroutine so
// a slow conversation never stalls envelope acks; ordering per user is
// the dispatcher's job, not the socket's.
type SocketListener struct {
	client  *Client
	handler EventHandler
}

// NewSocketListener wires a listener.
func NewSocketListener(client *Client, handler EventHandler) *SocketListener {
	return &SocketListener{client: client, handler: handler}
}

// Run connects and processes envelopes until ctx is cancelled, redialing
// with backoff when the connection drops or Slack asks us to refresh.
func (l *SocketListener) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := l.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			l.client.logger.Warn("socket mode connection lost, reconnecting",
				"error", err, "backoff", backoff)
		} else {
			// Clean server-requested reconnect.
			backoff = time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// runOnce dials one Socket Mode connection and reads it to failure or a
// server-initiated disconnect.
func (l *SocketListener) runOnce(ctx context.Context) error {
	url, err := l.client.openConnection(ctx)
	if err != nil {
		return err
	}

	// The Web API client carries a request timeout, which would cap the
	// connection's lifetime; the dial uses the default client instead and
	// relies on ctx for cancellation.
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("slack: dial socket mode: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	// Inbound payloads can exceed the 32KiB default.
	conn.SetReadLimit(1 << 20)

	l.client.logger.Info("socket mode connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				return fmt.Errorf("slack: socket closed: %w", err)
			}
			return err
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			l.client.logger.Warn("unparsable socket frame", "error", err)
			continue
		}

		// Ack first. Slack redelivers unacked envelopes, which would
		// duplicate user messages into the conversation.
		if env.EnvelopeID != "" {
			if err := l.ack(ctx, conn, env.EnvelopeID); err != nil {
				return err
			}
		}

		switch env.Type {
		case "hello":
			// Connection established.
		case "disconnect":
			l.client.logger.Info("server requested reconnect", "reason", env.Reason)
			return nil
		case "events_api":
			l.dispatch(ctx, env.Payload)
		default:
			l.client.logger.Debug("ignoring socket frame", "type", env.Type)
		}
	}
}

func (l *SocketListener) ack(ctx context.Context, conn *websocket.Conn, envelopeID string) error {
	data, err := json.Marshal(map[string]string{"envelope_id": envelopeID})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("slack: ack envelope: %w", err)
	}
	return nil
}

// dispatch hands a message event to the handler. Non-message events and
// events without a user are dropped here.
func (l *SocketListener) dispatch(ctx context.Context, payload json.RawMessage) {
	var p eventsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		l.client.logger.Warn("unparsable events_api payload", "error", err)
		return
	}
	if p.Event.Type != "message" || p.Event.User == "" {
		return
	}

	ev := bot.InboundEvent{
		UserID:    p.Event.User,
		Channel:   p.Event.Channel,
		Text:      p.Event.Text,
		BotOrigin: p.Event.BotID != "" || p.Event.Subtype == "bot_message",
	}

	go l.handler.HandleEvent(ctx, ev)
}

var _ EventHandler = (*bot.Dispatcher)(nil)
