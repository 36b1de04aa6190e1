package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"binance-trade-engine/internal/domain"
)

// StreamConfig configures the kline stream client.
type StreamConfig struct {
	// Endpoint is the websocket base URL.
	Endpoint string
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing frames.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns defaults against the production futures stream.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Endpoint:          "wss://fstream.binance.com/stream",
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// KlineStream subscribes to one-minute kline events for a set of symbols
// and emits a domain.Bar for each closed candle. The stream reconnects
// with exponential backoff; consumers that need gapless history must
// backfill over REST after a reconnect.
type KlineStream struct {
	config  StreamConfig
	symbols []string
	log     *logrus.Entry

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	bars chan *domain.Bar
	done chan struct{}
	wg   sync.WaitGroup
}

// NewKlineStream connects and starts streaming closed bars for symbols.
func NewKlineStream(ctx context.Context, config StreamConfig, symbols []string, log *logrus.Entry) (*KlineStream, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("kline stream: no symbols")
	}

	s := &KlineStream{
		config:  config,
		symbols: symbols,
		log:     log,
		bars:    make(chan *domain.Bar, 1024),
		done:    make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Bars returns the channel of closed bars. Closed on stream shutdown.
func (s *KlineStream) Bars() <-chan *domain.Bar {
	return s.bars
}

// Close shuts the stream down and closes the bars channel.
func (s *KlineStream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.bars)
	return nil
}

// connect dials the combined stream URL for all subscribed symbols.
func (s *KlineStream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(sym)+"@kline_1m")
	}
	url := s.config.Endpoint + "?streams=" + strings.Join(streams, "/")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// readLoop reads kline events and emits closed bars, reconnecting on error.
func (s *KlineStream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.sleep(reconnectDelay) {
				return
			}
			reconnectDelay = s.nextDelay(reconnectDelay)
			s.reconnect()
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.log.WithError(err).Warn("kline stream read failed, reconnecting")

			s.connMu.Lock()
			s.conn.Close()
			s.conn = nil
			s.connMu.Unlock()

			if !s.sleep(reconnectDelay) {
				return
			}
			reconnectDelay = s.nextDelay(reconnectDelay)
			s.reconnect()
			continue
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect redials the combined stream. Failure leaves conn nil and the
// read loop retries.
func (s *KlineStream) reconnect() {
	if s.closed.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.log.WithError(err).Warn("kline stream reconnect failed")
	}
}

// sleep waits for d unless the stream is shut down first.
func (s *KlineStream) sleep(d time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *KlineStream) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > s.config.MaxReconnectDelay {
		d = s.config.MaxReconnectDelay
	}
	return d
}

// handleMessage parses a combined-stream kline event. Only closed candles
// become bars.
func (s *KlineStream) handleMessage(message []byte) {
	var envelope struct {
		Data klineEvent `json:"data"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return
	}

	k := envelope.Data.Kline
	if envelope.Data.EventType != "kline" || !k.Closed {
		return
	}

	bar := &domain.Bar{
		Symbol:   envelope.Data.Symbol,
		OpenTime: k.OpenTime,
		Open:     parseFloat(k.Open),
		High:     parseFloat(k.High),
		Low:      parseFloat(k.Low),
		Close:    parseFloat(k.Close),
		Volume:   parseFloat(k.Volume),
	}

	// Block until we can send - never drop closed bars
	select {
	case s.bars <- bar:
	case <-s.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *KlineStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// The read loop handles the reconnect.
					s.log.WithError(err).Debug("kline stream ping failed")
				}
			}
			s.connMu.Unlock()
		}
	}
}

// Kline event payload

type klineEvent struct {
	EventType string       `json:"e"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}
