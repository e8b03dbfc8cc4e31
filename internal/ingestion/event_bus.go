package ingestion

import (
	"DepositsDetector/internal/event"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventsStreamName is the JetStream stream holding completion events.
const EventsStreamName = "DEPOSITS_EVENTS"

// Publisher is the subset of jetstream.JetStream the bus needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSEventBus announces completion events on JetStream. The operation id
// is the message id, so JetStream drops re-announcements of the same credit
// inside the stream's duplicate window.
type NATSEventBus struct {
	js      Publisher
	subject string
}

func NewNATSEventBus(js Publisher, subject string) *NATSEventBus {
	if subject == "" {
		subject = event.CashinCompletedSubject
	}
	return &NATSEventBus{js: js, subject: subject}
}

func (b *NATSEventBus) PublishCashinCompleted(ctx context.Context, ev *event.CompletionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}

	if _, err := b.js.Publish(ctx, b.subject, data, jetstream.WithMsgID(ev.OperationID.String())); err != nil {
		return fmt.Errorf("publish %s: %w", b.subject, err)
	}
	return nil
}

// EnsureEventsStream creates the completion events stream covering subject's
// parent hierarchy, e.g. deposits.events.> for deposits.events.cashin-completed.
func EnsureEventsStream(ctx context.Context, js jetstream.JetStream, subject string) error {
	if subject == "" {
		subject = event.CashinCompletedSubject
	}
	filter := subject
	if i := strings.LastIndex(subject, "."); i > 0 {
		filter = subject[:i] + ".>"
	}

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       EventsStreamName,
		Subjects:   []string{filter},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 24 * time.Hour,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create events stream: %w", err)
	}
	log.Printf("INFO: ensured events stream %s (%s)", EventsStreamName, filter)
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.Name("deposits-detector"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return nc, js, nil
}
