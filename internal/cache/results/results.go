// Package results caches finished query results in Redis.
//
// Every variable carries a generation counter. Keys embed the current
// generation, so bumping it orphans all earlier entries for that variable and
// they age out through their TTL.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/cache/keys"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/core/observability"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
)

// Backend is the subset of the Redis client the cache needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Int(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
}

type Cache struct {
	be        Backend
	ttl       time.Duration
	ttlOvr    map[string]time.Duration
	opTimeout time.Duration
	log       *slog.Logger
}

var _ pipeline.ResultCache = (*Cache)(nil)

type Option func(*Cache)

func WithTTL(d time.Duration) Option { return func(c *Cache) { c.ttl = d } }

// WithTTLOverrides sets per-variable TTLs keyed by variable field name.
func WithTTLOverrides(m map[string]time.Duration) Option {
	return func(c *Cache) { c.ttlOvr = m }
}

// WithOpTimeout bounds every Redis round trip independently of the caller.
func WithOpTimeout(d time.Duration) Option { return func(c *Cache) { c.opTimeout = d } }

func New(be Backend, log *slog.Logger, opts ...Option) *Cache {
	if log == nil {
		log = slog.Default()
	}
	c := &Cache{be: be, ttl: time.Hour, opTimeout: 250 * time.Millisecond, log: log}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) Get(ctx context.Context, q pipeline.Query) (model.Result, bool, error) {
	key, err := c.key(ctx, q)
	if err != nil {
		return model.Result{}, false, err
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	b, ok, err := c.be.Get(ctx, key)
	if err != nil {
		return model.Result{}, false, err
	}
	if !ok {
		observability.IncCacheMiss("")
		return model.Result{}, false, nil
	}
	var r model.Result
	if err := json.Unmarshal(b, &r); err != nil {
		// corrupt entries are dropped and count as a miss
		c.log.Warn("cache entry undecodable", "key", key, "err", err)
		if derr := c.be.Del(ctx, key); derr != nil {
			c.log.Warn("cache entry delete failed", "key", key, "err", derr)
		}
		observability.IncCacheMiss("")
		return model.Result{}, false, nil
	}
	observability.IncCacheHit("")
	return r, true, nil
}

func (c *Cache) Put(ctx context.Context, q pipeline.Query, r model.Result) error {
	key, err := c.key(ctx, q)
	if err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.be.Set(ctx, key, b, c.ttlFor(q.Request.Variable))
}

func (c *Cache) ttlFor(v model.Variable) time.Duration {
	if d, ok := c.ttlOvr[v.Field()]; ok && d > 0 {
		return d
	}
	return c.ttl
}

// Bump invalidates every cached result for v and returns the new generation.
func (c *Cache) Bump(ctx context.Context, v model.Variable) (int64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	g, err := c.be.Incr(ctx, keys.GenerationKey(v.Field()))
	if err != nil {
		return 0, fmt.Errorf("bump generation for %s: %w", v.Field(), err)
	}
	c.log.Info("cache generation bumped", "variable", v.Field(), "generation", g)
	return g, nil
}

func (c *Cache) Generation(ctx context.Context, v model.Variable) (int64, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.be.Int(ctx, keys.GenerationKey(v.Field()))
}

func (c *Cache) key(ctx context.Context, q pipeline.Query) (string, error) {
	canon, err := Canonical(q)
	if err != nil {
		return "", err
	}
	gen, err := c.Generation(ctx, q.Request.Variable)
	if err != nil {
		return "", err
	}
	r := q.Request
	return keys.Key(r.Variable.Field(), gen, string(r.Mode), r.Start, r.End, canon), nil
}

func (c *Cache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

// Canonical renders every field that influences a result in a fixed order.
func Canonical(q pipeline.Query) (string, error) {
	r := q.Request
	wkt, err := r.Area.WKT()
	if err != nil {
		return "", fmt.Errorf("canonical area: %w", err)
	}
	var b strings.Builder
	field := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte(';')
	}
	field("var", r.Variable.Field())
	field("mode", string(r.Mode))
	field("start", model.FormatDate(r.Start))
	field("end", model.FormatDate(r.End))
	field("op", string(r.Operator))
	field("keep", strconv.FormatBool(r.KeepSeparateDates))
	if r.Mode == model.ModeGridded {
		field("grid", string(r.Grid))
		if r.Grid == model.GridH3 {
			field("h3", strconv.Itoa(r.H3Res))
		} else {
			field("res", strconv.FormatFloat(r.Resolution, 'g', -1, 64))
		}
	}
	g := q.Granularity
	if g == "" {
		g = model.Daily
	}
	field("gran", string(g))
	if q.Reference != nil {
		field("ref", model.FormatDate(q.Reference.Start)+".."+model.FormatDate(q.Reference.End))
	}
	field("area", wkt)
	return b.String(), nil
}
