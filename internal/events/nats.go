package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"talkvault/internal/logging"
	"talkvault/internal/services"
)

const flushTimeout = 2 * time.Second

// conn is the part of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher sends events as JSON over core NATS.
type NATSPublisher struct {
	conn   conn
	prefix string
	logger *slog.Logger
}

// DialNATS connects to url and returns a publisher that reconnects
// indefinitely.
func DialNATS(url, subjectPrefix string, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logging.NewComponentLogger(logger, "events")
	nc, err := nats.Connect(url,
		nats.Name("talkvault"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.WarnWithContext(logger, "nats disconnected", "nats_disconnected",
					logging.Error(err),
					logging.String(logging.FieldImpact, "progress events are buffered until reconnect"),
				)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", logging.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "events", "connect", "cannot reach NATS at "+url, err)
	}
	return newNATSPublisher(nc, subjectPrefix, logger), nil
}

func newNATSPublisher(c conn, subjectPrefix string, logger *slog.Logger) *NATSPublisher {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = "talkvault.progress"
	}
	return &NATSPublisher{conn: c, prefix: prefix, logger: logger}
}

// Subject returns the subject events of videoID are published on.
func (p *NATSPublisher) Subject(videoID string) string {
	if videoID == "" {
		videoID = "unknown"
	}
	return p.prefix + "." + videoID
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event.VideoID), data); err != nil {
		return services.Wrap(services.ErrTransient, "events", "publish", "nats publish failed", err)
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(flushTimeout)
	p.conn.Close()
	if err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}
