package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
	"github.com/nats-io/nats.go"
)

// StreamName is the JetStream stream that retains recording lifecycle events.
const StreamName = "MINUTES"

// Client wraps NATS connection and JetStream context with minimal helpers.
type Client struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	log     *slog.Logger
	durable bool
}

func Connect(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("loqa-minutes"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{
		conn: conn,
		js:   js,
		log:  log,
	}, nil
}

// EnsureStream creates the lifecycle stream when JetStream is available.
// Without it, Publish falls back to core NATS and events are not retained.
func (c *Client) EnsureStream(ctx context.Context) error {
	_, err := c.js.StreamInfo(StreamName, nats.Context(ctx))
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{protocol.SubjectRecordingPrefix + ".>"},
			Storage:  nats.FileStorage,
			MaxAge:   7 * 24 * time.Hour,
		}, nats.Context(ctx))
	}
	if err != nil {
		c.log.Warn("jetstream unavailable, publishing without retention", slog.String("error", err.Error()))
		return err
	}
	c.durable = true
	return nil
}

// Publish encodes v as JSON and sends it on subject.
func (c *Client) Publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subject, err)
	}
	if c.durable {
		if _, err := c.js.Publish(subject, data, nats.Context(ctx)); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		return nil
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers every recording lifecycle event to fn.
func (c *Client) Subscribe(fn func(subject string, evt protocol.RecordingEvent)) (*nats.Subscription, error) {
	return c.conn.Subscribe(protocol.SubjectRecordingPrefix+".>", func(msg *nats.Msg) {
		var evt protocol.RecordingEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			c.log.Warn("dropping malformed event", slog.String("subject", msg.Subject), slog.String("error", err.Error()))
			return
		}
		fn(msg.Subject, evt)
	})
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	c.log.Info("closing NATS connection")
	_ = c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}
