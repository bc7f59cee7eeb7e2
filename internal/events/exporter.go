// Package events streams the agent's history to a Kafka topic so
// operators can watch a fleet of assistants from one place. Export is
// best-effort: a slow or absent broker never blocks the agent.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/LoreClaw/LoreClaw/internal/timeline"
)

const (
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Exporter forwards timeline events to Kafka through a bounded queue.
// A nil Exporter is valid and drops everything, so call sites can wire
// it unconditionally.
type Exporter struct {
	writer messageWriter
	queue  chan timeline.Event
	topic  string
}

// NewExporter returns an Exporter publishing to topic, or nil when no
// brokers are configured. bootstrap is a comma-separated broker list.
func NewExporter(bootstrap, topic string) *Exporter {
	bootstrap = strings.TrimSpace(bootstrap)
	if bootstrap == "" {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(bootstrap, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Lifecycle beats arrive one at a time; the default batch
		// timeout would add a second of latency to every write.
		BatchTimeout: 100 * time.Millisecond,
	}
	return &Exporter{
		writer: w,
		queue:  make(chan timeline.Event, queueSize),
		topic:  topic,
	}
}

// Enqueue hands an event to the export queue without blocking. Events
// are dropped when the queue is full or the exporter is disabled.
func (e *Exporter) Enqueue(evt timeline.Event) {
	if e == nil {
		return
	}
	select {
	case e.queue <- evt:
	default:
		slog.Debug("Event export queue full, dropping", "kind", evt.Kind)
	}
}

// Run drains the queue until the context is cancelled, then closes the
// writer. Write failures are logged and the event is lost; the timeline
// database remains the durable record.
func (e *Exporter) Run(ctx context.Context) {
	slog.Info("Event exporter started", "topic", e.topic)
	defer e.writer.Close()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Event exporter stopped")
			return
		case evt := <-e.queue:
			e.export(ctx, evt)
		}
	}
}

func (e *Exporter) export(ctx context.Context, evt timeline.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("Event not exportable", "kind", evt.Kind, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err = e.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(evt.Kind),
		Value: payload,
		Time:  evt.Timestamp,
	})
	if err != nil {
		slog.Warn("Event export failed", "kind", evt.Kind, "error", err)
	}
}
