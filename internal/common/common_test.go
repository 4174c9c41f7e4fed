package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closer struct {
	calls int
	err   error
}

func (c *closer) Close() error {
	c.calls++
	return c.err
}

type recorder struct {
	events []string
}

func (r *recorder) Acquired(k Kind, _ any) { r.events = append(r.events, "acquired "+k.String()) }
func (r *recorder) Released(k Kind, _ any) { r.events = append(r.events, "released "+k.String()) }
func (r *recorder) Detached(k Kind, _ any) { r.events = append(r.events, "detached "+k.String()) }

func TestReleaseCallsClose(t *testing.T) {
	c := &closer{err: errors.New("boom")}
	require.EqualError(t, Release(KindUnique, c), "boom")
	assert.Equal(t, 1, c.calls)
}

func TestReleasePlainValue(t *testing.T) {
	v := 3
	require.NoError(t, Release(KindShared, &v))
	require.NoError(t, Release[int](KindShared, nil))
}

func TestHookEvents(t *testing.T) {
	rec := &recorder{}
	prev := SetHook(rec)
	defer SetHook(prev)

	v := 1
	Acquired(KindShared, &v)
	Acquired[int](KindShared, nil)
	Detached(KindUnique, &v)
	require.NoError(t, Release(KindShared, &v))

	assert.Equal(t, []string{"acquired shared", "detached unique", "released shared"}, rec.events)
}

func TestSetHookReturnsPrevious(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	orig := SetHook(a)
	assert.Same(t, a, SetHook(b))
	assert.Same(t, b, SetHook(orig))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "shared", KindShared.String())
	assert.Equal(t, "unique", KindUnique.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
