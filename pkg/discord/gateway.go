package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opResume         = 6
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// intentGuilds is the only gateway intent the bot needs: guild lifecycle
// events. Interactions arrive regardless of intents.
const intentGuilds = 1 << 0

// gatewayPayload is the wire frame for every gateway message.
type gatewayPayload struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int64          `json:"s,omitempty"`
	Type string          `json:"t,omitempty"`
}

// EventHandler receives every dispatched gateway event. Handlers run on
// the session goroutine; heavy work must be deferred elsewhere.
type EventHandler func(ctx context.Context, eventType string, data json.RawMessage)

// Session is the long-lived websocket connection to the Discord gateway.
// It identifies, heartbeats, resumes after drops, and hands dispatched
// events to a single handler.
type Session struct {
	gatewayURL string
	token      string
	handler    EventHandler
	logger     *slog.Logger

	seq       atomic.Int64
	sessionID string
	resumeURL string
}

// NewSession builds a gateway session. handler receives every dispatch.
func NewSession(gatewayURL, botToken string, handler EventHandler) *Session {
	return &Session{
		gatewayURL: gatewayURL,
		token:      botToken,
		handler:    handler,
		logger:     slog.Default().With("component", "discord-gateway"),
	}
}

// Run connects and serves until ctx is cancelled, reconnecting with
// backoff on any failure.
func (s *Session) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.serve(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("Gateway session ended, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, time.Minute)
	}
}

// serve runs one websocket connection to completion.
func (s *Session) serve(ctx context.Context) error {
	dialURL := s.gatewayURL
	resuming := s.sessionID != "" && s.resumeURL != ""
	if resuming {
		dialURL = s.resumeURL
	}

	conn, _, err := websocket.Dial(ctx, dialURL, nil)
	if err != nil {
		return fmt.Errorf("dialing gateway: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 22)

	// First frame must be HELLO with the heartbeat interval.
	var hello gatewayPayload
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		return fmt.Errorf("reading hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.Data, &helloData); err != nil {
		return fmt.Errorf("decoding hello: %w", err)
	}
	interval := time.Duration(helloData.HeartbeatInterval) * time.Millisecond

	if resuming {
		err = s.sendResume(ctx, conn)
	} else {
		err = s.sendIdentify(ctx, conn)
	}
	if err != nil {
		return err
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	hbErr := make(chan error, 1)
	go func() { hbErr <- s.heartbeat(hbCtx, conn, interval) }()

	for {
		select {
		case err := <-hbErr:
			return err
		default:
		}

		var frame gatewayPayload
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return fmt.Errorf("reading gateway frame: %w", err)
		}

		switch frame.Op {
		case opDispatch:
			if frame.Seq != nil {
				s.seq.Store(*frame.Seq)
			}
			s.dispatch(ctx, frame)
		case opHeartbeat:
			if err := s.sendHeartbeat(ctx, conn); err != nil {
				return err
			}
		case opReconnect:
			s.logger.Info("Gateway requested reconnect")
			return nil
		case opInvalidSession:
			var resumable bool
			_ = json.Unmarshal(frame.Data, &resumable)
			if !resumable {
				s.sessionID = ""
				s.resumeURL = ""
			}
			s.logger.Warn("Gateway invalidated session", "resumable", resumable)
			return nil
		case opHeartbeatAck:
			// Expected; nothing to do.
		}
	}
}

// dispatch records session state from READY and forwards the event.
func (s *Session) dispatch(ctx context.Context, frame gatewayPayload) {
	if frame.Type == "READY" {
		var ready struct {
			SessionID        string `json:"session_id"`
			ResumeGatewayURL string `json:"resume_gateway_url"`
		}
		if err := json.Unmarshal(frame.Data, &ready); err == nil {
			s.sessionID = ready.SessionID
			s.resumeURL = ready.ResumeGatewayURL
		}
		s.logger.Info("Gateway session ready", "session_id", s.sessionID)
	}
	if s.handler != nil {
		s.handler(ctx, frame.Type, frame.Data)
	}
}

func (s *Session) sendIdentify(ctx context.Context, conn *websocket.Conn) error {
	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   s.token,
			"intents": intentGuilds,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "gamenight",
				"device":  "gamenight",
			},
		},
	}
	if err := wsjson.Write(ctx, conn, identify); err != nil {
		return fmt.Errorf("sending identify: %w", err)
	}
	return nil
}

func (s *Session) sendResume(ctx context.Context, conn *websocket.Conn) error {
	resume := map[string]any{
		"op": opResume,
		"d": map[string]any{
			"token":      s.token,
			"session_id": s.sessionID,
			"seq":        s.seq.Load(),
		},
	}
	if err := wsjson.Write(ctx, conn, resume); err != nil {
		return fmt.Errorf("sending resume: %w", err)
	}
	return nil
}

func (s *Session) sendHeartbeat(ctx context.Context, conn *websocket.Conn) error {
	seq := s.seq.Load()
	hb := map[string]any{"op": opHeartbeat, "d": seq}
	if seq == 0 {
		hb["d"] = nil
	}
	if err := wsjson.Write(ctx, conn, hb); err != nil {
		return fmt.Errorf("sending heartbeat: %w", err)
	}
	return nil
}

// heartbeat sends the periodic heartbeat, jittering the first beat as the
// gateway asks.
func (s *Session) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) error {
	first := time.Duration(rand.Int63n(int64(interval)))
	t := time.NewTimer(first)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		if err := s.sendHeartbeat(ctx, conn); err != nil {
			return err
		}
		t.Reset(interval)
	}
}
