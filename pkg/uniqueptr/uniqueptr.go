// Package uniqueptr provides Ptr, the single owner of a heap value.
// Ownership moves with Move and MoveFrom and is never shared.
package uniqueptr

import (
	"errors"
	"fmt"

	"github.com/rawbytedev/smartptr/internal/common"
)

var ErrInit = errors.New("uniqueptr: value initialization failed")

// Ptr exclusively owns a *T. The zero value is empty. Ptr must not be copied
// by value.
type Ptr[T any] struct {
	_ common.NoCopy
	v *T
}

// New takes ownership of p, which may be nil.
func New[T any](p *T) *Ptr[T] {
	common.Acquired(common.KindUnique, p)
	return &Ptr[T]{v: p}
}

func Make[T any](v T) *Ptr[T] {
	p := new(T)
	*p = v
	return New(p)
}

// MakeWith allocates a zero T and lets init construct it in place.
func MakeWith[T any](init func(*T) error) (*Ptr[T], error) {
	v, err := build(init)
	if err != nil {
		return nil, err
	}
	return New(v), nil
}

func build[T any](init func(*T) error) (*T, error) {
	v := new(T)
	if init != nil {
		if err := init(v); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInit, err)
		}
	}
	return v, nil
}

// Move hands the value to a new Ptr and leaves p empty.
func (p *Ptr[T]) Move() *Ptr[T] {
	v := p.v
	p.v = nil
	return &Ptr[T]{v: v}
}

// MoveFrom destroys the value p holds and takes over src's value.
func (p *Ptr[T]) MoveFrom(src *Ptr[T]) error {
	if p == src {
		return nil
	}
	old := p.v
	p.v, src.v = src.v, nil
	return common.Release(common.KindUnique, old)
}

func (p *Ptr[T]) Get() *T {
	return p.v
}

// Value dereferences the owned value. p must not be empty.
func (p *Ptr[T]) Value() T {
	return *p.v
}

func (p *Ptr[T]) Load() (T, bool) {
	if p.v == nil {
		var zero T
		return zero, false
	}
	return *p.v, true
}

func (p *Ptr[T]) Valid() bool {
	return p.v != nil
}

// Reset destroys the current value, if any, and takes ownership of v.
// Resetting to the value already held does nothing.
func (p *Ptr[T]) Reset(v *T) error {
	if v == p.v {
		return nil
	}
	old := p.v
	p.v = v
	common.Acquired(common.KindUnique, v)
	return common.Release(common.KindUnique, old)
}

// ResetWith is Reset with an in-place constructed value. If init fails p is
// left untouched.
func (p *Ptr[T]) ResetWith(init func(*T) error) error {
	v, err := build(init)
	if err != nil {
		return err
	}
	return p.Reset(v)
}

// Release gives up ownership without destroying the value. The caller is
// now responsible for it.
func (p *Ptr[T]) Release() *T {
	v := p.v
	p.v = nil
	common.Detached(common.KindUnique, v)
	return v
}

func (p *Ptr[T]) Swap(o *Ptr[T]) {
	if p == o {
		return
	}
	p.v, o.v = o.v, p.v
}

// Close destroys the owned value. It is safe to call on an empty or nil Ptr.
func (p *Ptr[T]) Close() error {
	if p == nil {
		return nil
	}
	v := p.v
	p.v = nil
	return common.Release(common.KindUnique, v)
}
