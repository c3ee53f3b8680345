package marketdata

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/papertrader/internal/domain"
)

// TickHandler is called for each streamed quote update.
type TickHandler func(q domain.Quote)

// tickMessage is the wire format of a streamed quote.
type tickMessage struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Timestamp int64   `json:"ts"`
}

type subscribeMessage struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// TickStream subscribes to a quote WebSocket for the watchlist and invokes
// the handler on each tick. It reconnects with backoff on disconnect. The
// stream is optional; without it quotes only refresh on cache TTL expiry.
type TickStream struct {
	wsURL     string
	symbols   []string
	onTick    TickHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

func NewTickStream(wsURL string, symbols []string, onTick TickHandler, logger *slog.Logger) *TickStream {
	return &TickStream{
		wsURL:   wsURL,
		symbols: symbols,
		onTick:  onTick,
		logger:  logger.With(slog.String("component", "tick_stream")),
		done:    make(chan struct{}),
	}
}

// Run connects, subscribes to the configured symbols, and runs until ctx is
// cancelled or Close is called.
func (s *TickStream) Run(ctx context.Context) error {
	if s.wsURL == "" || len(s.symbols) == 0 {
		s.logger.Info("tick stream not configured, exiting")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}
		err := s.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("tick stream disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *TickStream) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.wsURL, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMessage{Action: "subscribe", Symbols: s.symbols}); err != nil {
		return err
	}
	s.logger.Info("tick stream subscribed", slog.Int("symbols", len(s.symbols)))

	// Unblock ReadMessage when the context ends.
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg tickMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("dropping malformed tick", slog.String("error", err.Error()))
			continue
		}
		if msg.Symbol == "" || msg.Price <= 0 {
			continue
		}
		if s.onTick != nil {
			s.onTick(domain.Quote{
				Symbol:     msg.Symbol,
				PriceTicks: domain.DollarsToTicks(msg.Price),
				Volume:     msg.Volume,
				Timestamp:  time.Unix(msg.Timestamp, 0).UTC(),
			})
		}
	}
}

// Close stops the stream.
func (s *TickStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
