package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) record(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, v)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestDebouncer_OnlyLastValueFires(t *testing.T) {
	rec := &recorder{}
	d := New(30*time.Millisecond, rec.record)

	for _, v := range []string{"m", "mi", "mil", "milk"} {
		d.Trigger(v)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"milk"}, rec.snapshot())
	assert.False(t, d.Pending())
}

func TestDebouncer_SeparateBurstsFireSeparately(t *testing.T) {
	rec := &recorder{}
	d := New(20*time.Millisecond, rec.record)

	d.Trigger("a")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	d.Trigger("b")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, rec.snapshot())
}

func TestDebouncer_StopCancels(t *testing.T) {
	rec := &recorder{}
	d := New(20*time.Millisecond, rec.record)

	d.Trigger("x")
	assert.True(t, d.Pending())
	d.Stop()
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, rec.snapshot())
	assert.False(t, d.Pending())
}

func TestDebouncer_FlushRunsImmediately(t *testing.T) {
	rec := &recorder{}
	d := New(time.Hour, rec.record)

	d.Flush()
	assert.Empty(t, rec.snapshot(), "nothing pending")

	d.Trigger("now")
	d.Flush()
	assert.Equal(t, []string{"now"}, rec.snapshot())

	d.Flush()
	assert.Equal(t, []string{"now"}, rec.snapshot(), "flush consumes the pending value")
}
