// Package events publishes job lifecycle transitions.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiranshivaraju/hyphy-mcp/internal/config"
	"github.com/kiranshivaraju/hyphy-mcp/pkg/models"
	"github.com/nats-io/nats.go"
)

// Publisher receives every job status change.
type Publisher interface {
	Publish(ctx context.Context, ev models.JobEvent) error
	Close()
}

// New connects to NATS when NATS_URL is set; otherwise events are dropped.
func New(cfg config.NATSConfig) (Publisher, error) {
	if cfg.URL == "" {
		return Nop{}, nil
	}
	return Connect(cfg.URL, cfg.Subject)
}

// NATSPublisher sends events as JSON to a single subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func Connect(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("hyphy-mcp"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string { return p.subject }

func (p *NATSPublisher) Publish(_ context.Context, ev models.JobEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, b)
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, models.JobEvent) error { return nil }
func (Nop) Close()                                         {}

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = Nop{}
)
