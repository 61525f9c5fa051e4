package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chess-anarchy/telemetry"
)

// DefaultBufferSize bounds the number of messages held between polls when no
// explicit size is configured.
const DefaultBufferSize = 1024

// Message is one chat line, reduced to what voting needs. User is the login
// name as reported by IRC (lowercase).
type Message struct {
	User string
	Text string
}

// Poller buffers Twitch chat messages for periodic draining. The IRC client
// delivers messages on its own goroutine; Poll hands them to the ingest loop
// in arrival order. When the buffer is full the oldest messages are dropped.
type Poller struct {
	username string
	token    string
	channel  string

	mu  sync.Mutex
	buf []Message
	max int
}

// NewPoller returns a Poller for channel. bufferSize <= 0 selects
// DefaultBufferSize.
func NewPoller(username, token, channel string, bufferSize int) *Poller {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Poller{username: username, token: token, channel: channel, max: bufferSize}
}

// Channel returns the joined channel name.
func (p *Poller) Channel() string { return p.channel }

func (p *Poller) push(m Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) >= p.max {
		p.buf = p.buf[1:]
		telemetry.IncChatDropped()
	}
	p.buf = append(p.buf, m)
}

// Poll removes and returns up to max buffered messages in arrival order.
// max <= 0 drains everything. Returns nil when the buffer is empty.
func (p *Poller) Poll(max int) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nil
	}
	n := len(p.buf)
	if max > 0 && max < n {
		n = max
	}
	out := make([]Message, n)
	copy(out, p.buf)
	p.buf = append(p.buf[:0], p.buf[n:]...)
	return out
}

// Run connects to Twitch IRC and keeps the connection alive until ctx is
// done, reconnecting with capped backoff after failures.
func (p *Poller) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		client := twitch.NewClient(p.username, p.token)
		client.OnConnect(func() {
			slog.Info("twitch chat connected", slog.String("channel", p.channel))
		})
		client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
			p.push(Message{User: msg.User.Name, Text: msg.Message})
		})
		client.Join(p.channel)

		// Handle context cancellation by closing the client
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				if err := client.Disconnect(); err != nil {
					slog.Debug("twitch chat disconnect", slog.Any("err", err))
				}
			case <-done:
			}
		}()

		start := time.Now()
		err := client.Connect()
		close(done)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("twitch chat connection lost", slog.Any("err", err))
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
