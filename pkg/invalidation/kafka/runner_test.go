package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/cache/redisstore"
	"github.com/mohammed-shakir/emission-explorer/internal/cache/results"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
	"github.com/mohammed-shakir/emission-explorer/internal/invalidation"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
)

type fakeBumper struct {
	mu    sync.Mutex
	calls []model.Variable
	err   error
}

func (f *fakeBumper) Bump(_ context.Context, v model.Variable) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.calls = append(f.calls, v)
	return int64(len(f.calls)), nil
}

func (f *fakeBumper) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func message(t *testing.T, ev invalidation.IngestEvent) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Timestamp: time.Now().UTC(), Value: b}
}

func ingest(version uint64) invalidation.IngestEvent {
	return invalidation.IngestEvent{
		Variable: "co2fire", Start: "01-01-2020", End: "02-01-2020",
		Version: version, TS: time.Now().UTC(),
	}
}

func newRunner(b Bumper) (*Runner, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	cfg := InvalidationConfig{Enabled: true, Driver: DriverKafka}
	return New(cfg, b, Options{Register: reg}), reg
}

func TestIngestEvent_BumpsOnce_AndSkipsStaleVersions(t *testing.T) {
	fb := &fakeBumper{}
	r, _ := newRunner(fb)
	ctx := context.Background()

	for _, v := range []uint64{1, 1, 2, 1} {
		if err := r.handleMessage(ctx, message(t, ingest(v))); err != nil {
			t.Fatalf("handleMessage(v%d): %v", v, err)
		}
	}
	if got := fb.Count(); got != 2 {
		t.Fatalf("bumps=%d want 2", got)
	}
	if got := testutil.ToFloat64(r.ms.apply.WithLabelValues("co2fire", "skip_version")); got != 2 {
		t.Fatalf("skip_version=%v want 2", got)
	}
	if got := testutil.ToFloat64(r.ms.gen.WithLabelValues("co2fire")); got != 2 {
		t.Fatalf("generation gauge=%v want 2", got)
	}
	if last, ok := r.ver.last(model.CO2Fire); !ok || last != 2 {
		t.Fatalf("last version=%d ok=%v", last, ok)
	}
	if got := testutil.ToFloat64(r.ms.msgs.WithLabelValues("ok")); got != 4 {
		t.Fatalf("ok messages=%v want 4", got)
	}
}

func TestInvalidEvents_AreSkippedNotRetried(t *testing.T) {
	fb := &fakeBumper{}
	r, _ := newRunner(fb)
	ctx := context.Background()

	bad := ingest(1)
	bad.Variable = "unknown"
	if err := r.handleMessage(ctx, message(t, bad)); err != nil {
		t.Fatalf("invalid event must not fail the claim: %v", err)
	}
	junk := &sarama.ConsumerMessage{Value: []byte("{not json")}
	if err := r.handleMessage(ctx, junk); err != nil {
		t.Fatalf("undecodable event must not fail the claim: %v", err)
	}
	if fb.Count() != 0 {
		t.Fatalf("no bump expected")
	}
	if got := testutil.ToFloat64(r.ms.msgs.WithLabelValues("invalid")); got != 2 {
		t.Fatalf("invalid=%v want 2", got)
	}
}

func TestBumpFailure_IsRetriedOnRedelivery(t *testing.T) {
	fb := &fakeBumper{err: errors.New("redis down")}
	r, _ := newRunner(fb)
	ctx := context.Background()
	msg := message(t, ingest(5))

	if err := r.handleMessage(ctx, msg); err == nil {
		t.Fatalf("expected bump error")
	}
	fb.mu.Lock()
	fb.err = nil
	fb.mu.Unlock()
	if err := r.handleMessage(ctx, msg); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if fb.Count() != 1 {
		t.Fatalf("redelivered event was not applied")
	}
	if got := testutil.ToFloat64(r.ms.msgs.WithLabelValues("error")); got != 1 {
		t.Fatalf("error messages=%v want 1", got)
	}
}

func TestStart_RejectsInvalidConfig(t *testing.T) {
	r := New(InvalidationConfig{Enabled: true, Driver: DriverKafka}, &fakeBumper{}, Options{})
	if err := r.Start(context.Background()); err == nil {
		t.Fatalf("expected config error")
	}
	if ok, _ := r.Readiness(); ok {
		t.Fatalf("runner must not report ready")
	}
}

func TestDisabledRunner_StartIsNoop(t *testing.T) {
	r := New(InvalidationConfig{Driver: DriverNone}, &fakeBumper{}, Options{})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Stop()
	if ready, _ := r.Readiness(); ready {
		t.Fatalf("disabled runner must not report partitions")
	}
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }
func (s *fakeSession) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, m.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func TestConsumeClaim_MarksProcessedMessages(t *testing.T) {
	fb := &fakeBumper{}
	r, _ := newRunner(fb)
	h := &groupHandler{process: r.handleMessage}

	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage, 2)}
	m1 := message(t, ingest(1))
	m2 := message(t, ingest(2))
	m2.Offset = 2
	claim.ch <- m1
	claim.ch <- m2
	close(claim.ch)

	sess := &fakeSession{ctx: context.Background()}
	if err := h.ConsumeClaim(sess, claim); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(sess.marked) != 2 || sess.marked[1] != 2 {
		t.Fatalf("marked=%v", sess.marked)
	}
	if fb.Count() != 2 {
		t.Fatalf("bumps=%d want 2", fb.Count())
	}
}

func TestIngestEvent_InvalidatesRedisResults(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	defer func() { _ = rc.Close() }()

	cache := results.New(rc, nil)
	start, _ := model.ParseDate("01-01-2020")
	q := pipeline.Query{Request: model.AggregationRequest{
		Variable: model.CO2Fire, Start: start, End: start,
		Area: geo.Box(0, 0, 1, 1), Operator: aggregate.Sum, Mode: model.ModeScalar,
	}}
	res := model.Result{Mode: model.ModeScalar, Series: &model.Series{
		Index:   []time.Time{start},
		Columns: []model.Column{{Name: "01/01/2020 - 01/01/2020", Values: []float64{7}}},
	}}
	if err := cache.Put(ctx, q, res); err != nil {
		t.Fatalf("Put: %v", err)
	}

	r, _ := newRunner(cache)
	if err := r.handleMessage(ctx, message(t, ingest(1))); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, q); ok {
		t.Fatalf("cached result survived an ingest event")
	}
}
