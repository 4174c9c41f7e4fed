// Package common holds the pieces shared by the owner types: value
// destruction, the copy guard and the lifetime tracking hook.
package common

import (
	"io"
	"sync/atomic"
)

// Kind names the owner type reporting a lifetime event.
type Kind uint8

const (
	KindShared Kind = iota + 1
	KindUnique
)

func (k Kind) String() string {
	switch k {
	case KindShared:
		return "shared"
	case KindUnique:
		return "unique"
	default:
		return "unknown"
	}
}

// Hook receives ownership lifetime events. ptr is always a non-nil *T.
type Hook interface {
	// Acquired is called when an owner takes ownership of a fresh value.
	Acquired(k Kind, ptr any)
	// Released is called right before the value is destroyed.
	Released(k Kind, ptr any)
	// Detached is called when ownership leaves the owner without destruction.
	Detached(k Kind, ptr any)
}

type hookBox struct{ h Hook }

var active atomic.Pointer[hookBox]

// SetHook installs h and returns the hook it replaced. A nil h turns tracking off.
func SetHook(h Hook) Hook {
	var next *hookBox
	if h != nil {
		next = &hookBox{h: h}
	}
	prev := active.Swap(next)
	if prev == nil {
		return nil
	}
	return prev.h
}

// Acquired reports that p is now owned.
func Acquired[T any](k Kind, p *T) {
	if p == nil {
		return
	}
	if b := active.Load(); b != nil {
		b.h.Acquired(k, p)
	}
}

// Detached reports that p left its owner without being destroyed.
func Detached[T any](k Kind, p *T) {
	if p == nil {
		return
	}
	if b := active.Load(); b != nil {
		b.h.Detached(k, p)
	}
}

// Release destroys p: the Close method runs when *T implements io.Closer.
// The caller drops its references afterwards so the collector can reclaim p.
func Release[T any](k Kind, p *T) error {
	if p == nil {
		return nil
	}
	if b := active.Load(); b != nil {
		b.h.Released(k, p)
	}
	if c, ok := any(p).(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NoCopy may be embedded into structs which must not be copied after first
// use. go vet's copylocks check reports copies of such structs.
type NoCopy struct{}

func (*NoCopy) Lock()   {}
func (*NoCopy) Unlock() {}
