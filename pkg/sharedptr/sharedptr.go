// Package sharedptr provides Ptr, a reference-counted owner of a heap value.
//
// Every Ptr sharing a value points at the same control block, which carries
// the use count next to the value reference. The value is destroyed exactly
// once, when the last sharing Ptr is closed, reset or reassigned: if *T
// implements io.Closer its Close method runs, then the block is dropped.
//
// Counts are plain integers. A value and all Ptrs sharing it must be used
// from one goroutine at a time; callers that share across goroutines must
// synchronise externally.
//
// Ptr must not be copied by value. Use Clone to share and Move to transfer.
package sharedptr

import (
	"errors"
	"fmt"

	"github.com/rawbytedev/smartptr/internal/common"
)

var ErrInit = errors.New("sharedptr: value initialization failed")

type block[T any] struct {
	refs int
	ptr  *T
}

// inline co-locates the block and the value so Make needs one allocation.
type inline[T any] struct {
	block[T]
	val T
}

func (in *inline[T]) publish() *block[T] {
	in.refs = 1
	in.ptr = &in.val
	common.Acquired(common.KindShared, in.ptr)
	return &in.block
}

func build[T any](init func(*T) error) (*block[T], error) {
	in := &inline[T]{}
	if init != nil {
		if err := init(&in.val); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInit, err)
		}
	}
	return in.publish(), nil
}

// Ptr shares ownership of a *T. The zero value is empty.
type Ptr[T any] struct {
	_ common.NoCopy
	b *block[T]
}

// New takes ownership of p with a use count of one. A nil p yields an empty Ptr.
// The caller must not destroy p afterwards.
func New[T any](p *T) *Ptr[T] {
	if p == nil {
		return &Ptr[T]{}
	}
	common.Acquired(common.KindShared, p)
	return &Ptr[T]{b: &block[T]{refs: 1, ptr: p}}
}

// Make allocates a copy of v together with its control block.
func Make[T any](v T) *Ptr[T] {
	in := &inline[T]{val: v}
	return &Ptr[T]{b: in.publish()}
}

// MakeWith allocates a zero T and lets init construct it in place. When init
// fails nothing is published and the error wraps ErrInit.
func MakeWith[T any](init func(*T) error) (*Ptr[T], error) {
	b, err := build(init)
	if err != nil {
		return nil, err
	}
	return &Ptr[T]{b: b}, nil
}

// drop gives up this owner's share and destroys the value on the last one.
func (p *Ptr[T]) drop() error {
	b := p.b
	if b == nil {
		return nil
	}
	p.b = nil
	b.refs--
	if b.refs > 0 {
		return nil
	}
	if b.refs < 0 {
		panic("sharedptr: use count below zero, Ptr copied by value?")
	}
	v := b.ptr
	b.ptr = nil
	return common.Release(common.KindShared, v)
}

// Clone returns a new owner sharing p's value. Cloning an empty Ptr
// returns an empty Ptr.
func (p *Ptr[T]) Clone() *Ptr[T] {
	if p.b != nil {
		p.b.refs++
	}
	return &Ptr[T]{b: p.b}
}

// Assign makes p share src's value, giving up whatever p held before.
// The returned error comes from destroying p's previous value.
func (p *Ptr[T]) Assign(src *Ptr[T]) error {
	if p == src || p.b == src.b {
		return nil
	}
	nb := src.b
	if nb != nil {
		nb.refs++
	}
	err := p.drop()
	p.b = nb
	return err
}

// Move transfers p's share to a new Ptr and leaves p empty. The count is
// unchanged.
func (p *Ptr[T]) Move() *Ptr[T] {
	b := p.b
	p.b = nil
	return &Ptr[T]{b: b}
}

// MoveFrom transfers src's share into p, leaving src empty.
func (p *Ptr[T]) MoveFrom(src *Ptr[T]) error {
	if p == src {
		return nil
	}
	nb := src.b
	src.b = nil
	err := p.drop()
	p.b = nb
	return err
}

// Get returns the owned value without affecting ownership, or nil.
func (p *Ptr[T]) Get() *T {
	if p.b == nil {
		return nil
	}
	return p.b.ptr
}

// Value dereferences the owned value. p must not be empty.
func (p *Ptr[T]) Value() T {
	return *p.b.ptr
}

// Load is the checked form of Value.
func (p *Ptr[T]) Load() (T, bool) {
	if !p.Valid() {
		var zero T
		return zero, false
	}
	return *p.b.ptr, true
}

func (p *Ptr[T]) Valid() bool {
	return p.b != nil && p.b.ptr != nil
}

// Reset gives up the current share and takes ownership of v, as New does.
func (p *Ptr[T]) Reset(v *T) error {
	if v != nil && v == p.Get() {
		return nil
	}
	err := p.drop()
	if v != nil {
		common.Acquired(common.KindShared, v)
		p.b = &block[T]{refs: 1, ptr: v}
	}
	return err
}

// ResetWith is Reset with an in-place constructed value. If init fails p
// keeps its current value and share.
func (p *Ptr[T]) ResetWith(init func(*T) error) error {
	nb, err := build(init)
	if err != nil {
		return err
	}
	err = p.drop()
	p.b = nb
	return err
}

// Unique reports whether p is the only owner of its value.
func (p *Ptr[T]) Unique() bool {
	return p.b != nil && p.b.refs == 1
}

// UseCount returns the number of owners sharing p's value, 0 when empty.
func (p *Ptr[T]) UseCount() int {
	if p.b == nil {
		return 0
	}
	return p.b.refs
}

// Swap exchanges the values of p and o.
func (p *Ptr[T]) Swap(o *Ptr[T]) {
	if p == o {
		return
	}
	p.b, o.b = o.b, p.b
}

// Close gives up p's share. Closing an empty or nil Ptr is a no-op, so Close
// may be called any number of times.
func (p *Ptr[T]) Close() error {
	if p == nil {
		return nil
	}
	return p.drop()
}
