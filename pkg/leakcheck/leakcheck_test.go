package leakcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rawbytedev/smartptr/pkg/sharedptr"
	"github.com/rawbytedev/smartptr/pkg/uniqueptr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newObserved(t *testing.T) (*Tracker, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tr := New(Options{Logger: zap.New(core)})
	t.Cleanup(tr.Install())
	return tr, logs
}

func TestNoLeaks(t *testing.T) {
	tr, logs := newObserved(t)

	a := sharedptr.Make(5)
	b := a.Clone()
	u := uniqueptr.Make("x")
	assert.Len(t, tr.Live(), 2)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.NoError(t, u.Close())

	require.NoError(t, tr.Check())
	assert.Equal(t, Stats{Acquired: 2, Released: 2}, tr.Stats())
	assert.Equal(t, 2, logs.FilterMessage("acquired").Len())
	assert.Equal(t, 2, logs.FilterMessage("released").Len())
}

func TestLeakReported(t *testing.T) {
	tr, _ := newObserved(t)

	a := sharedptr.Make(1)
	u := uniqueptr.Make(2)
	err := tr.Check()
	require.ErrorIs(t, err, ErrLeaked)
	assert.Contains(t, err.Error(), "#1 shared *int")
	assert.Contains(t, err.Error(), "#2 unique *int")

	live := tr.Live()
	require.Len(t, live, 2)
	assert.Equal(t, uint64(1), live[0].ID)
	assert.Equal(t, uint64(2), live[1].ID)

	require.NoError(t, a.Close())
	require.NoError(t, u.Close())
	require.NoError(t, tr.Check())
}

func TestDetachedIsNotALeak(t *testing.T) {
	tr, logs := newObserved(t)

	u := uniqueptr.Make(3)
	raw := u.Release()
	require.NotNil(t, raw)
	require.NoError(t, tr.Check())
	assert.Equal(t, 1, tr.Stats().Detached)
	assert.Equal(t, 1, logs.FilterMessage("detached").Len())
}

func TestDoubleOwnership(t *testing.T) {
	tr, logs := newObserved(t)

	v := 7
	a := uniqueptr.New(&v)
	b := sharedptr.New(&v)
	require.ErrorIs(t, tr.Check(), ErrViolation)
	assert.Equal(t, 1, logs.FilterMessage("value owned twice").Len())

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	st := tr.Stats()
	assert.Equal(t, 2, st.Violations, "second destruction is reported")
	assert.Equal(t, 1, logs.FilterMessage("release of a value not owned").Len())
	errs := logs.FilterLevelExact(zapcore.ErrorLevel)
	assert.Equal(t, 2, errs.Len())
}

func TestInstallRestores(t *testing.T) {
	outer := New(Options{})
	restoreOuter := outer.Install()
	defer restoreOuter()

	inner := New(Options{})
	restore := inner.Install()
	p := sharedptr.Make(1)
	restore()
	q := sharedptr.Make(2)

	assert.Len(t, inner.Live(), 1)
	assert.Len(t, outer.Live(), 1)
	require.NoError(t, q.Close())
	require.NoError(t, outer.Check())
	_ = p
}
