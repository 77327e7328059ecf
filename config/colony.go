package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// Colony is the configuration handle of one named colony. It reads the
// colony's blob from a Store and never fails a read: absent, malformed or
// out-of-range values fall back to defaults or are clamped.
type Colony struct {
	name   string
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	lastBlob []byte
	last     Params
	decoded  bool
	warned   map[string]struct{}
}

// NewColony creates a handle for name backed by store. A nil logger uses
// slog.Default().
func NewColony(name string, store Store, logger *slog.Logger) *Colony {
	if logger == nil {
		logger = slog.Default()
	}
	return &Colony{
		name:   name,
		store:  store,
		logger: logger.With("colony", name),
		last:   DefaultParams(),
		warned: make(map[string]struct{}),
	}
}

// Name returns the colony name the blob is keyed by.
func (c *Colony) Name() string {
	return c.name
}

// Snapshot returns the current parameters. The blob is decoded again only
// when its content changed since the previous call. Store failures keep the
// last good snapshot.
func (c *Colony) Snapshot() Params {
	blob, err := c.store.Get(context.Background(), c.name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.warnOnce("store:"+err.Error(), "reading colony config failed, keeping last snapshot", "err", err)
		return c.last
	}
	if c.decoded && bytes.Equal(blob, c.lastBlob) {
		return c.last
	}

	c.last = c.decode(blob)
	c.lastBlob = append(c.lastBlob[:0], blob...)
	c.decoded = true
	return c.last
}

// Value returns the current value of a numeric parameter.
func (c *Colony) Value(key string) (float64, error) {
	return c.Snapshot().Value(key)
}

// SetValue stores a numeric parameter, snapped to its step and clamped to
// its range. Other keys in the blob are preserved.
func (c *Colony) SetValue(ctx context.Context, key string, v float64) (float64, error) {
	r, ok := LookupRange(key)
	if !ok {
		return 0, fmt.Errorf("unknown parameter %q", key)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parameter %s: value %v is not finite", key, v)
	}
	v = r.Snap(v)
	if err := c.update(ctx, func(m map[string]any) { m[key] = v }); err != nil {
		return 0, err
	}
	return v, nil
}

// SetColor stores one of the cosmetic color fields.
func (c *Colony) SetColor(ctx context.Context, key, color string) error {
	if key != KeyRobotColor && key != KeyResourceColor {
		return fmt.Errorf("unknown color field %q", key)
	}
	if !colorPattern.MatchString(color) {
		return fmt.Errorf("color %q is not #rrggbb", color)
	}
	return c.update(ctx, func(m map[string]any) { m[key] = color })
}

// Apply stores several values at once, as from a run file's overrides.
func (c *Colony) Apply(ctx context.Context, values map[string]float64) error {
	for key := range values {
		if _, ok := LookupRange(key); !ok {
			return fmt.Errorf("unknown parameter %q", key)
		}
	}
	return c.update(ctx, func(m map[string]any) {
		for key, v := range values {
			r, _ := LookupRange(key)
			m[key] = r.Snap(v)
		}
	})
}

// Reset removes the colony's blob so every parameter reads as default.
func (c *Colony) Reset(ctx context.Context) error {
	if err := c.store.Set(ctx, c.name, nil); err != nil {
		return fmt.Errorf("resetting colony %s: %w", c.name, err)
	}
	return nil
}

// update performs a read-modify-write of the stored blob. Malformed blobs
// are replaced.
func (c *Colony) update(ctx context.Context, mutate func(map[string]any)) error {
	blob, err := c.store.Get(ctx, c.name)
	if err != nil {
		return fmt.Errorf("reading colony %s: %w", c.name, err)
	}
	m := make(map[string]any)
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &m); err != nil {
			m = make(map[string]any)
		}
	}
	mutate(m)

	out, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding colony %s: %w", c.name, err)
	}
	if err := c.store.Set(ctx, c.name, out); err != nil {
		return fmt.Errorf("writing colony %s: %w", c.name, err)
	}
	return nil
}

// decode turns a blob into Params. Called with mu held.
func (c *Colony) decode(blob []byte) Params {
	p := DefaultParams()
	if len(blob) == 0 {
		return p
	}

	var doc any
	if err := json.Unmarshal(blob, &doc); err != nil {
		c.warnOnce("decode", "malformed colony config, using defaults", "err", err)
		return p
	}
	if err := blobSchema.Validate(doc); err != nil {
		c.warnOnce("schema:"+err.Error(), "colony config failed validation", "err", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return p
	}

	for _, r := range Ranges {
		raw, present := obj[r.Key]
		if !present {
			continue
		}
		v, ok := raw.(float64)
		if !ok {
			c.warnOnce("type:"+r.Key, "non-numeric parameter, using default", "key", r.Key, "value", raw)
			continue
		}
		if cv := r.Clamp(v); cv != v {
			c.warnOnce("range:"+r.Key, "parameter out of range, clamping", "key", r.Key, "value", v, "min", r.Min, "max", r.Max)
			v = cv
		}
		p.set(r.Key, v)
	}
	if s, ok := obj[KeyRobotColor].(string); ok {
		p.RobotColor = s
	}
	if s, ok := obj[KeyResourceColor].(string); ok {
		p.ResourceColor = s
	}
	return p
}

func (c *Colony) warnOnce(key, msg string, args ...any) {
	if _, seen := c.warned[key]; seen {
		return
	}
	c.warned[key] = struct{}{}
	c.logger.Warn(msg, args...)
}
