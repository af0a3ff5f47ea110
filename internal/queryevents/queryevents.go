// Package queryevents publishes an audit event per finished query to Kafka.
package queryevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
)

type Event struct {
	Variable   string    `json:"variable"`
	Mode       string    `json:"mode"`
	Operator   string    `json:"operator"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Rows       int       `json:"rows"`
	Cached     bool      `json:"cached"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	TS         time.Time `json:"ts"`
	Scenario   string    `json:"scenario,omitempty"`
}

// FromOutcome builds the event for a finished query.
func FromOutcome(o pipeline.Outcome, scenario string, now time.Time) Event {
	r := o.Query.Request
	ev := Event{
		Variable:   r.Variable.Field(),
		Mode:       string(r.Mode),
		Operator:   string(r.Operator),
		Start:      model.FormatDate(r.Start),
		End:        model.FormatDate(r.End),
		Rows:       o.Rows,
		Cached:     o.Cached,
		DurationMS: o.Duration.Milliseconds(),
		TS:         now.UTC(),
		Scenario:   scenario,
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	return ev
}

type Publisher struct {
	topic    string
	scenario string
	log      *slog.Logger
	events   chan Event
	prod     sarama.AsyncProducer
	stopped  chan struct{}
	dropped  atomic.Int64
}

var _ pipeline.Observer = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("queryevents: create async producer: %w", err)
	}
	return newWithProducer(prod, topic, queueSize, log), nil
}

func newWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		log:     log,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Warn("queryevents: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Variable),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn("queryevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// WithScenario tags every subsequent event.
func (p *Publisher) WithScenario(s string) *Publisher {
	p.scenario = s
	return p
}

func (p *Publisher) Publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		// queue full: drop, never block the request path
		p.dropped.Add(1)
	}
}

func (p *Publisher) Observe(_ context.Context, o pipeline.Outcome) {
	p.Publish(FromOutcome(o, p.scenario, time.Now()))
}

func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("queryevents: close producer: %w", err)
	}
	return nil
}
