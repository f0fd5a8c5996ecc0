package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"monsweeper-backend/internal/logger"
	"monsweeper-backend/internal/models"
)

// EventPublisher fans game lifecycle events out to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event models.GameEvent) error
	Close()
}

// NATSPublisher publishes each event on <prefix>.<event type>, e.g.
// monsweeper.games.gameended.
type NATSPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
}

func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("monsweeper-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("Disconnected from NATS", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, subjectPrefix: subjectPrefix}, nil
}

func (p *NATSPublisher) Subject(t models.EventType) string {
	return p.subjectPrefix + "." + strings.ToLower(string(t))
}

func (p *NATSPublisher) Publish(_ context.Context, event models.GameEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(event.Type), data)
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.GameEvent) error { return nil }
func (NopPublisher) Close()                                          {}
