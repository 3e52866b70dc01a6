package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/academy/internal/quiz"
)

type fakeTicker struct {
	ch chan time.Time
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

// fakeClock hands every ticker it creates to the test, which then drives
// the countdown one tick at a time.
type fakeClock struct {
	made chan *fakeTicker
}

func newFakeClock() *fakeClock { return &fakeClock{made: make(chan *fakeTicker, 16)} }

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time)}
	c.made <- t
	return t
}

func (c *fakeClock) next(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case ft := <-c.made:
		return ft
	case <-time.After(time.Second):
		t.Fatal("no ticker created")
		return nil
	}
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("expiry callback not called")
		return ""
	}
}

func TestSchedulerAutoSubmitsAfterSixtyTicks(t *testing.T) {
	clk := newFakeClock()
	expired := make(chan string, 1)
	s := NewScheduler(func(_ context.Context, id string) { expired <- id }, WithTicker(clk.NewTicker))
	defer s.Stop()

	one := 1
	seconds := quiz.Quiz{TimerMinutes: &one}.TimerSeconds(quiz.DefaultTimerMinutes)
	require.Equal(t, 60, seconds)

	cd := s.Arm("sess-1", seconds)
	ft := clk.next(t)
	for i := 0; i < 59; i++ {
		ft.ch <- time.Now()
	}
	select {
	case <-expired:
		t.Fatal("expired before the 60th tick")
	default:
	}

	ft.ch <- time.Now()
	assert.Equal(t, "sess-1", waitFor(t, expired))
	assert.Equal(t, Expired, cd.State())
	assert.Equal(t, 0, cd.Remaining())
	assert.Equal(t, 0, s.Active())
	assert.False(t, s.Cancel("sess-1"))
}

func TestSchedulerCancelSubmits(t *testing.T) {
	clk := newFakeClock()
	expired := make(chan string, 1)
	s := NewScheduler(func(_ context.Context, id string) { expired <- id }, WithTicker(clk.NewTicker))
	defer s.Stop()

	cd := s.Arm("sess-1", 5)
	ft := clk.next(t)
	ft.ch <- time.Now()

	left, ok := s.Remaining("sess-1")
	require.True(t, ok)
	assert.LessOrEqual(t, left, 5)

	assert.True(t, s.Cancel("sess-1"))
	assert.Equal(t, Submitted, cd.State())
	assert.Equal(t, 0, s.Active())
	_, ok = s.Remaining("sess-1")
	assert.False(t, ok)
	assert.False(t, s.Cancel("sess-1"))

	select {
	case <-expired:
		t.Fatal("canceled countdown expired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerArmIsIdempotent(t *testing.T) {
	clk := newFakeClock()
	s := NewScheduler(nil, WithTicker(clk.NewTicker))
	defer s.Stop()

	first := s.Arm("sess-1", 30)
	clk.next(t)
	second := s.Arm("sess-1", 600)
	assert.Same(t, first, second)
	assert.Equal(t, 30, second.Remaining())
	assert.Equal(t, 1, s.Active())

	select {
	case <-clk.made:
		t.Fatal("re-arming created a second ticker")
	default:
	}
}

func TestSchedulerStop(t *testing.T) {
	clk := newFakeClock()
	s := NewScheduler(nil, WithTicker(clk.NewTicker))
	s.Arm("a", 30)
	s.Arm("b", 30)
	assert.Equal(t, 2, s.Active())

	s.Stop()
	assert.Equal(t, 0, s.Active())
	assert.Nil(t, s.Arm("c", 30))
}
