// Package smartptr provides two ownership primitives for values that need
// deterministic destruction: Shared, a reference-counted owner, and Unique,
// a single owner that transfers only by move.
//
// A value is destroyed when its last owner lets go. If *T implements
// io.Closer, destruction calls Close exactly once; otherwise the owner just
// drops its references and leaves the memory to the collector.
//
// The owners are not safe for concurrent use and must not be copied by
// value. See packages sharedptr and uniqueptr for the full API.
package smartptr

import (
	"go.uber.org/zap"

	"github.com/rawbytedev/smartptr/pkg/leakcheck"
	"github.com/rawbytedev/smartptr/pkg/sharedptr"
	"github.com/rawbytedev/smartptr/pkg/uniqueptr"
)

type (
	Shared[T any] = sharedptr.Ptr[T]
	Unique[T any] = uniqueptr.Ptr[T]
)

// MakeShared allocates v with a use count of one.
func MakeShared[T any](v T) *Shared[T] {
	return sharedptr.Make(v)
}

// MakeUnique allocates v under a single owner.
func MakeUnique[T any](v T) *Unique[T] {
	return uniqueptr.Make(v)
}

// Track installs a leak tracker logging to logger and returns it with the
// func that uninstalls it.
func Track(logger *zap.Logger) (*leakcheck.Tracker, func()) {
	tr := leakcheck.New(leakcheck.Options{Logger: logger})
	return tr, tr.Install()
}
