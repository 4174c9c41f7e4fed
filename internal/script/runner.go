package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rawbytedev/smartptr/pkg/leakcheck"
	"github.com/rawbytedev/smartptr/pkg/sharedptr"
	"github.com/rawbytedev/smartptr/pkg/uniqueptr"
)

var (
	ErrUnknownOp       = errors.New("unknown op")
	ErrUnknownHandle   = errors.New("unknown handle")
	ErrKindMismatch    = errors.New("kind mismatch")
	ErrMissingField    = errors.New("missing field")
	ErrExpectation     = errors.New("expectation failed")
	ErrDoubleDestroy   = errors.New("cell destroyed twice")
	ErrDetachedUnfreed = errors.New("released value never freed")
)

const (
	kindShared = "shared"
	kindUnique = "unique"
)

type Options struct {
	// Logger receives leakcheck diagnostics. Nil discards them.
	Logger *zap.Logger
}

// Cell is the payload owned by scenario handles. Destroying it twice is an
// error reported by the run.
type Cell struct {
	ID    int
	Value int

	run       *run
	destroyed bool
}

func (c *Cell) Close() error {
	if c.destroyed {
		return fmt.Errorf("%w: #%d", ErrDoubleDestroy, c.ID)
	}
	c.destroyed = true
	c.run.destroyed++
	c.run.emit("destroy", fmt.Sprintf("#%d", c.ID), fmt.Sprintf("value=%d", c.Value))
	return nil
}

// Event is one line of a scenario trace.
type Event struct {
	Step   int
	Op     string
	Name   string
	Detail string
}

func (e Event) String() string {
	return fmt.Sprintf("%3d %-7s %-4s %s", e.Step, e.Op, e.Name, e.Detail)
}

type Result struct {
	Scenario  string
	Events    []Event
	Allocated int
	Destroyed int
	Stats     leakcheck.Stats
}

type handle struct {
	kind   string
	shared *sharedptr.Ptr[Cell]
	unique *uniqueptr.Ptr[Cell]
}

func (h *handle) get() *Cell {
	if h.kind == kindShared {
		return h.shared.Get()
	}
	return h.unique.Get()
}

func (h *handle) close() error {
	if h.kind == kindShared {
		return h.shared.Close()
	}
	return h.unique.Close()
}

type run struct {
	handles   map[string]*handle
	detached  map[string]*Cell
	step      int
	nextID    int
	destroyed int
	events    []Event
}

func (r *run) emit(op, name, detail string) {
	r.events = append(r.events, Event{Step: r.step, Op: op, Name: name, Detail: detail})
}

func (r *run) cell(v int) *Cell {
	r.nextID++
	return &Cell{ID: r.nextID, Value: v, run: r}
}

// Run executes sc with a leak tracker installed. Every handle still open at
// the end is closed; values that were never destroyed, or destroyed twice,
// make the run fail.
func Run(sc Scenario, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tr := leakcheck.New(leakcheck.Options{Logger: log.With(zap.String("scenario", sc.Name))})
	restore := tr.Install()
	defer restore()

	r := &run{handles: map[string]*handle{}, detached: map[string]*Cell{}}
	res := &Result{Scenario: sc.Name}
	finish := func() {
		res.Events = r.events
		res.Allocated = r.nextID
		res.Destroyed = r.destroyed
		res.Stats = tr.Stats()
	}

	for i, st := range sc.Steps {
		r.step = i + 1
		if err := r.exec(st); err != nil {
			r.teardown()
			finish()
			return res, fmt.Errorf("%s: step %d (%s): %w", sc.Name, r.step, st.Op, err)
		}
	}
	r.step = len(sc.Steps) + 1
	err := r.teardown()
	finish()
	if err == nil {
		err = tr.Check()
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", sc.Name, err)
	}
	return res, nil
}

// teardown closes the remaining handles in name order.
func (r *run) teardown() error {
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs []error
	for _, name := range names {
		if err := r.handles[name].close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.handles, name)
		r.emit("close", name, "")
	}
	detached := make([]string, 0, len(r.detached))
	for name := range r.detached {
		detached = append(detached, name)
	}
	sort.Strings(detached)
	for _, name := range detached {
		errs = append(errs, fmt.Errorf("%w: %s", ErrDetachedUnfreed, name))
	}
	return errors.Join(errs...)
}

func (r *run) lookup(name string) (*handle, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}
	h, ok := r.handles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, name)
	}
	return h, nil
}

func (r *run) describe(name string) string {
	h, ok := r.handles[name]
	if !ok {
		return "gone"
	}
	c := h.get()
	if c == nil {
		return h.kind + " empty"
	}
	if h.kind == kindShared {
		return fmt.Sprintf("shared #%d value=%d count=%d", c.ID, c.Value, h.shared.UseCount())
	}
	return fmt.Sprintf("unique #%d value=%d", c.ID, c.Value)
}

func (r *run) exec(st Step) error {
	switch st.Op {
	case "make", "adopt":
		return r.create(st)
	case "clone":
		return r.clone(st)
	case "move":
		return r.move(st)
	case "reset":
		return r.reset(st)
	case "release":
		return r.release(st)
	case "free":
		return r.free(st)
	case "swap":
		return r.swap(st)
	case "drop":
		return r.drop(st)
	case "expect":
		return r.expect(st)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, st.Op)
	}
}

func (r *run) create(st Step) error {
	if st.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if st.Kind != kindShared && st.Kind != kindUnique {
		return fmt.Errorf("%w: %q", ErrKindMismatch, st.Kind)
	}
	h, exists := r.handles[st.Name]
	if exists && h.kind != st.Kind {
		return fmt.Errorf("%w: %s is %s", ErrKindMismatch, st.Name, h.kind)
	}
	var c *Cell
	if st.Value != nil {
		c = r.cell(*st.Value)
	} else if st.Op == "make" {
		return fmt.Errorf("%w: value", ErrMissingField)
	}

	var fresh *handle
	switch st.Kind {
	case kindShared:
		fresh = &handle{kind: kindShared, shared: sharedptr.New(c)}
	default:
		fresh = &handle{kind: kindUnique, unique: uniqueptr.New(c)}
	}

	var err error
	if exists {
		err = assignMove(h, fresh)
	} else {
		r.handles[st.Name] = fresh
	}
	r.emit(st.Op, st.Name, r.describe(st.Name))
	return err
}

func (r *run) clone(st Step) error {
	src, err := r.lookup(st.From)
	if err != nil {
		return err
	}
	if src.kind != kindShared {
		return fmt.Errorf("%w: cannot clone %s owner %s", ErrKindMismatch, src.kind, st.From)
	}
	if st.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if dst, ok := r.handles[st.Name]; ok {
		if dst.kind != kindShared {
			return fmt.Errorf("%w: %s is %s", ErrKindMismatch, st.Name, dst.kind)
		}
		err = dst.shared.Assign(src.shared)
	} else {
		r.handles[st.Name] = &handle{kind: kindShared, shared: src.shared.Clone()}
	}
	r.emit("clone", st.Name, r.describe(st.Name))
	return err
}

func (r *run) move(st Step) error {
	src, err := r.lookup(st.From)
	if err != nil {
		return err
	}
	if st.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if dst, ok := r.handles[st.Name]; ok {
		err = assignMove(dst, src)
	} else {
		moved := &handle{kind: src.kind}
		if src.kind == kindShared {
			moved.shared = src.shared.Move()
		} else {
			moved.unique = src.unique.Move()
		}
		r.handles[st.Name] = moved
	}
	r.emit("move", st.Name, r.describe(st.Name))
	if st.From != st.Name {
		r.emit("move", st.From, r.describe(st.From))
	}
	return err
}

// assignMove move-assigns src into dst.
func assignMove(dst, src *handle) error {
	if dst.kind != src.kind {
		return fmt.Errorf("%w: %s into %s", ErrKindMismatch, src.kind, dst.kind)
	}
	if dst.kind == kindShared {
		return dst.shared.MoveFrom(src.shared)
	}
	return dst.unique.MoveFrom(src.unique)
}

func (r *run) reset(st Step) error {
	h, err := r.lookup(st.Name)
	if err != nil {
		return err
	}
	var c *Cell
	if st.Value != nil {
		c = r.cell(*st.Value)
	}
	if h.kind == kindShared {
		err = h.shared.Reset(c)
	} else {
		err = h.unique.Reset(c)
	}
	r.emit("reset", st.Name, r.describe(st.Name))
	return err
}

func (r *run) release(st Step) error {
	h, err := r.lookup(st.Name)
	if err != nil {
		return err
	}
	if h.kind != kindUnique {
		return fmt.Errorf("%w: release needs a unique owner, %s is %s", ErrKindMismatch, st.Name, h.kind)
	}
	if prev, ok := r.detached[st.Name]; ok && h.unique.Valid() {
		return fmt.Errorf("%w: %s still holds #%d", ErrDetachedUnfreed, st.Name, prev.ID)
	}
	if c := h.unique.Release(); c != nil {
		r.detached[st.Name] = c
		r.emit("release", st.Name, fmt.Sprintf("detached #%d", c.ID))
		return nil
	}
	r.emit("release", st.Name, "nothing held")
	return nil
}

func (r *run) free(st Step) error {
	c, ok := r.detached[st.Name]
	if !ok {
		return fmt.Errorf("%w: nothing released from %s", ErrUnknownHandle, st.Name)
	}
	delete(r.detached, st.Name)
	err := c.Close()
	r.emit("free", st.Name, fmt.Sprintf("#%d", c.ID))
	return err
}

func (r *run) swap(st Step) error {
	a, err := r.lookup(st.Name)
	if err != nil {
		return err
	}
	b, err := r.lookup(st.With)
	if err != nil {
		return err
	}
	if a.kind != b.kind {
		return fmt.Errorf("%w: swap %s with %s", ErrKindMismatch, a.kind, b.kind)
	}
	if a.kind == kindShared {
		a.shared.Swap(b.shared)
	} else {
		a.unique.Swap(b.unique)
	}
	r.emit("swap", st.Name, r.describe(st.Name))
	if st.With != st.Name {
		r.emit("swap", st.With, r.describe(st.With))
	}
	return nil
}

func (r *run) drop(st Step) error {
	h, err := r.lookup(st.Name)
	if err != nil {
		return err
	}
	err = h.close()
	delete(r.handles, st.Name)
	r.emit("drop", st.Name, "")
	return err
}

func (r *run) expect(st Step) error {
	var fails []string
	if st.Released != nil && *st.Released != r.destroyed {
		fails = append(fails, fmt.Sprintf("released=%d, want %d", r.destroyed, *st.Released))
	}
	if st.Name != "" {
		h, err := r.lookup(st.Name)
		if err != nil {
			return err
		}
		c := h.get()
		valid := c != nil
		if st.Valid != nil && *st.Valid != valid {
			fails = append(fails, fmt.Sprintf("valid=%t, want %t", valid, *st.Valid))
		}
		if st.Value != nil {
			if !valid {
				fails = append(fails, fmt.Sprintf("empty, want value %d", *st.Value))
			} else if c.Value != *st.Value {
				fails = append(fails, fmt.Sprintf("value=%d, want %d", c.Value, *st.Value))
			}
		}
		if st.Count != nil || st.Unique != nil {
			if h.kind != kindShared {
				return fmt.Errorf("%w: count and unique apply to shared owners", ErrKindMismatch)
			}
			if st.Count != nil && h.shared.UseCount() != *st.Count {
				fails = append(fails, fmt.Sprintf("count=%d, want %d", h.shared.UseCount(), *st.Count))
			}
			if st.Unique != nil && h.shared.Unique() != *st.Unique {
				fails = append(fails, fmt.Sprintf("unique=%t, want %t", h.shared.Unique(), *st.Unique))
			}
		}
	}
	if len(fails) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrExpectation, st.Name, strings.Join(fails, ", "))
	}
	r.emit("expect", st.Name, "ok")
	return nil
}
