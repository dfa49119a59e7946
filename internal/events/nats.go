package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"adforge/internal/infra"
)

// Publisher is the subset of *nats.Conn used by the relay.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS dials url with reconnects that never give up.
func ConnectNATS(url string, logger *infra.Logger) (*nats.Conn, error) {
	logger = infra.LoggerOrDiscard(logger)
	nc, err := nats.Connect(url,
		nats.Name("adforge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("events: nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("events: nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect nats: %w", err)
	}
	return nc, nil
}

// Relay forwards bus events to NATS as JSON on "<prefix>.<status>", for
// example "adforge.jobs.completed".
type Relay struct {
	pub    Publisher
	prefix string
	logger *infra.Logger
}

func NewRelay(pub Publisher, prefix string, logger *infra.Logger) *Relay {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "adforge.jobs"
	}
	return &Relay{pub: pub, prefix: prefix, logger: infra.LoggerOrDiscard(logger)}
}

// Subject returns the subject for an event type.
func (r *Relay) Subject(t EventType) string {
	return r.prefix + "." + strings.TrimPrefix(string(t), "job.")
}

// Start forwards events in the background until ch closes, which happens
// when the bus is closed. The returned channel is closed once the last
// buffered event has been handed to the publisher.
func (r *Relay) Start(ch <-chan JobEvent) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(context.Background(), ch)
	}()
	return done
}

// Run forwards events until ctx is done or the channel closes.
func (r *Relay) Run(ctx context.Context, ch <-chan JobEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := r.forward(ev); err != nil {
				r.logger.Error().Err(err).
					Str("event", string(ev.Type)).
					Str("job_id", ev.Job.ID).
					Msg("events: relay publish failed")
			}
		}
	}
}

func (r *Relay) forward(ev JobEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.pub.Publish(r.Subject(ev.Type), payload)
}
