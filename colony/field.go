package colony

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"slices"

	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/systems"
	"github.com/pthm-cable/forage/telemetry"
)

// FieldOptions configures a Field and the colonies it creates.
type FieldOptions struct {
	Seed        int64
	Logger      *slog.Logger
	BusMode     systems.BusMode
	LinearScan  bool
	StatsWindow int32
	Perf        *telemetry.PerfCollector
}

// Field is a shared rectangle on which several colonies forage
// independently. Colonies tick in name order.
type Field struct {
	Width  float64
	Height float64

	store    config.Store
	opts     FieldOptions
	colonies map[string]*Colony
	order    []string
}

// NewField creates an empty field. Colony parameters are read from store.
func NewField(width, height float64, store config.Store, opts FieldOptions) *Field {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Field{
		Width:    width,
		Height:   height,
		store:    store,
		opts:     opts,
		colonies: make(map[string]*Colony),
	}
}

// Add creates a colony named name. Its RNG is derived from the field seed
// and the name, so adding colonies does not perturb the others.
func (f *Field) Add(name string) (*Colony, error) {
	if _, ok := f.colonies[name]; ok {
		return nil, fmt.Errorf("colony %q already exists", name)
	}

	c := New(name, config.NewColony(name, f.store, f.opts.Logger), Options{
		Rng:         rand.New(rand.NewSource(ColonySeed(f.opts.Seed, name))),
		Logger:      f.opts.Logger,
		BusMode:     f.opts.BusMode,
		LinearScan:  f.opts.LinearScan,
		StatsWindow: f.opts.StatsWindow,
		Perf:        f.opts.Perf,
	})

	f.colonies[name] = c
	f.order = append(f.order, name)
	slices.Sort(f.order)
	return c, nil
}

// Remove drops a colony. It reports whether the colony existed.
func (f *Field) Remove(name string) bool {
	if _, ok := f.colonies[name]; !ok {
		return false
	}
	delete(f.colonies, name)
	f.order = slices.DeleteFunc(f.order, func(n string) bool { return n == name })
	return true
}

// Colony returns the named colony or nil.
func (f *Field) Colony(name string) *Colony {
	return f.colonies[name]
}

// Colonies returns the colonies sorted by name.
func (f *Field) Colonies() []*Colony {
	out := make([]*Colony, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.colonies[name])
	}
	return out
}

// Tick advances every colony by one step.
func (f *Field) Tick() {
	if f.opts.Perf != nil {
		f.opts.Perf.StartTick()
	}
	for _, name := range f.order {
		f.colonies[name].Tick(f.Width, f.Height)
	}
	if f.opts.Perf != nil {
		f.opts.Perf.EndTick()
	}
}

// ColonySeed derives a colony's RNG seed from the field seed and its name.
func ColonySeed(seed int64, name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}
