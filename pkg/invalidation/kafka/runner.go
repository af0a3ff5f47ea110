// Package kafka consumes data ingestion events and invalidates cached
// results for the affected variables.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/invalidation"
)

// Bumper advances the cache generation of a variable.
type Bumper interface {
	Bump(ctx context.Context, v model.Variable) (int64, error)
}

type Runner struct {
	log      *slog.Logger
	cfg      InvalidationConfig
	cache    Bumper
	ms       *metricSet
	ver      *versionDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
}

func New(cfg InvalidationConfig, c Bumper, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:    opts.Logger,
		cfg:    cfg,
		cache:  c,
		ms:     newMetricSet(opts.Register),
		ver:    newVersionDedupe(64),
		assign: map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Active() {
		r.log.Info("invalidation runner disabled", "driver", r.cfg.Driver, "enabled", r.cfg.Enabled)
		return nil
	}
	if r.cache == nil {
		return errors.New("kafka runner: cache dependency is required")
	}
	if err := r.cfg.Validate(); err != nil {
		return err
	}
	cfg, err := r.cfg.Sarama()
	if err != nil {
		return fmt.Errorf("kafka runner: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			claims := sess.Claims()
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range claims {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka invalidation runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka invalidation runner stopped")
}

func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

// handleMessage returns an error only for failures worth redelivering.
// Undecodable or invalid events are counted and skipped.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	if !msg.Timestamp.IsZero() {
		r.ms.lagGauge.Set(time.Since(msg.Timestamp).Seconds())
	}

	var ev invalidation.IngestEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.ms.msgs.WithLabelValues("invalid").Inc()
		r.log.Warn("skipping undecodable ingest event",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		r.ms.msgs.WithLabelValues("invalid").Inc()
		r.log.Warn("skipping invalid ingest event",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}

	err := r.apply(ctx, ev)
	r.observe(err, time.Since(start))
	return err
}

func (r *Runner) observe(err error, dur time.Duration) {
	if err != nil {
		r.ms.msgs.WithLabelValues("error").Inc()
	} else {
		r.ms.msgs.WithLabelValues("ok").Inc()
	}
	r.ms.proc.Observe(dur.Seconds())
}

func (r *Runner) apply(ctx context.Context, ev invalidation.IngestEvent) error {
	v, err := ev.Var()
	if err != nil {
		return err
	}
	if !r.ver.shouldApply(v, ev.Version) {
		r.ms.action(v.Field(), "skip_version")
		return nil
	}
	gen, err := r.cache.Bump(ctx, v)
	if err != nil {
		r.ver.forget(v, ev.Version)
		return fmt.Errorf("bump %s: %w", v.Field(), err)
	}
	r.ms.bumped(v.Field(), gen)
	r.log.Info("cache invalidated",
		"variable", v.Field(),
		"start", ev.Start,
		"end", ev.End,
		"version", ev.Version,
		"generation", gen,
	)
	return nil
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
