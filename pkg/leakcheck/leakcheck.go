// Package leakcheck tracks the values owned by sharedptr and uniqueptr so
// tests and tools can assert that every value is destroyed exactly once.
//
// Install the tracker before creating the owners it should watch:
//
//	tr := leakcheck.New(leakcheck.Options{Logger: logger})
//	defer tr.Install()()
//	...
//	if err := tr.Check(); err != nil { ... }
package leakcheck

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rawbytedev/smartptr/internal/common"
)

var (
	ErrLeaked    = errors.New("leakcheck: values still owned")
	ErrViolation = errors.New("leakcheck: ownership violation")
)

type Options struct {
	// Logger receives lifetime events at debug level and violations at
	// error level. Nil disables logging.
	Logger *zap.Logger
}

// Allocation describes one tracked value.
type Allocation struct {
	ID   uint64
	Kind string
	Type string
}

func (a Allocation) String() string {
	return fmt.Sprintf("#%d %s %s", a.ID, a.Kind, a.Type)
}

type Stats struct {
	Acquired   int
	Released   int
	Detached   int
	Violations int
}

// Tracker implements the owner lifetime hook. It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	log   *zap.Logger
	next  uint64
	live  map[any]Allocation
	stats Stats
}

func New(opts Options) *Tracker {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		log:  log.Named("leakcheck"),
		live: make(map[any]Allocation),
	}
}

// Install makes t the active tracker and returns a func restoring the
// previous one.
func (t *Tracker) Install() (restore func()) {
	prev := common.SetHook(t)
	return func() { common.SetHook(prev) }
}

func (t *Tracker) Acquired(k common.Kind, ptr any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.live[ptr]; ok {
		t.stats.Violations++
		t.log.Error("value owned twice",
			zap.Uint64("id", a.ID),
			zap.String("owner", a.Kind),
			zap.Stringer("kind", k),
			zap.String("type", a.Type))
		return
	}
	t.next++
	a := Allocation{ID: t.next, Kind: k.String(), Type: fmt.Sprintf("%T", ptr)}
	t.live[ptr] = a
	t.stats.Acquired++
	t.log.Debug("acquired", zap.Uint64("id", a.ID), zap.String("kind", a.Kind), zap.String("type", a.Type))
}

func (t *Tracker) Released(k common.Kind, ptr any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.live[ptr]
	if !ok {
		t.stats.Violations++
		t.log.Error("release of a value not owned",
			zap.Stringer("kind", k),
			zap.String("type", fmt.Sprintf("%T", ptr)))
		return
	}
	delete(t.live, ptr)
	t.stats.Released++
	t.log.Debug("released", zap.Uint64("id", a.ID), zap.String("kind", a.Kind))
}

func (t *Tracker) Detached(k common.Kind, ptr any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.live[ptr]
	if !ok {
		t.stats.Violations++
		t.log.Error("detach of a value not owned",
			zap.Stringer("kind", k),
			zap.String("type", fmt.Sprintf("%T", ptr)))
		return
	}
	delete(t.live, ptr)
	t.stats.Detached++
	t.log.Debug("detached", zap.Uint64("id", a.ID), zap.String("kind", a.Kind))
}

// Live returns the values still owned, oldest first.
func (t *Tracker) Live() []Allocation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Allocation, 0, len(t.live))
	for _, a := range t.live {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Allocation) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Check returns ErrLeaked if any value is still owned and ErrViolation if a
// double ownership or double release was seen.
func (t *Tracker) Check() error {
	live := t.Live()
	st := t.Stats()
	var errs []error
	if len(live) > 0 {
		names := make([]string, len(live))
		for i, a := range live {
			names[i] = a.String()
		}
		errs = append(errs, fmt.Errorf("%w: %d (%s)", ErrLeaked, len(live), strings.Join(names, ", ")))
	}
	if st.Violations > 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrViolation, st.Violations))
	}
	return errors.Join(errs...)
}
