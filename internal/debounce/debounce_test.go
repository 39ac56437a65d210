package debounce

import (
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock 手动推进的时钟，Advance 时按到期顺序同步执行回调
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at < c.timers[j].at })
		var next *fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= target {
				next = t
				break
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	at    []time.Duration
	clock *fakeClock
}

func (r *recorder) action(arg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, arg)
	if r.clock != nil {
		r.at = append(r.at, r.clock.now)
	}
}

func TestDebouncer_TrailingEdgeLastArgumentWins(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{clock: clock}
	d := New(rec.action, 300*time.Millisecond, WithClock(clock.AfterFunc))

	d.Call("a")
	clock.Advance(100 * time.Millisecond)
	d.Call("ab")
	clock.Advance(50 * time.Millisecond)
	d.Call("abc")

	clock.Advance(299 * time.Millisecond)
	if len(rec.calls) != 0 {
		t.Fatalf("fired too early: %v", rec.calls)
	}
	clock.Advance(time.Millisecond)

	if len(rec.calls) != 1 || rec.calls[0] != "abc" {
		t.Fatalf("calls = %v, want [abc]", rec.calls)
	}
	if rec.at[0] != 450*time.Millisecond {
		t.Errorf("fired at %v, want 450ms", rec.at[0])
	}
	if d.Pending() {
		t.Error("nothing should be pending after firing")
	}

	clock.Advance(time.Second)
	if len(rec.calls) != 1 {
		t.Errorf("fired more than once: %v", rec.calls)
	}
}

func TestDebouncer_SeparatedCallsFireEach(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{clock: clock}
	d := New(rec.action, 300*time.Millisecond, WithClock(clock.AfterFunc))

	d.Call("x")
	clock.Advance(400 * time.Millisecond)
	d.Call("y")
	clock.Advance(400 * time.Millisecond)

	if len(rec.calls) != 2 || rec.calls[0] != "x" || rec.calls[1] != "y" {
		t.Errorf("calls = %v", rec.calls)
	}
}

func TestDebouncer_FlushAndStop(t *testing.T) {
	clock := &fakeClock{}
	rec := &recorder{}
	d := New(rec.action, time.Second, WithClock(clock.AfterFunc))

	if d.Flush() {
		t.Error("Flush with nothing pending should return false")
	}

	d.Call("flushed")
	if !d.Pending() {
		t.Fatal("expected pending call")
	}
	if !d.Flush() {
		t.Fatal("Flush should run pending call")
	}
	clock.Advance(2 * time.Second)
	if len(rec.calls) != 1 || rec.calls[0] != "flushed" {
		t.Errorf("calls after flush = %v", rec.calls)
	}

	d.Call("dropped")
	d.Stop()
	clock.Advance(2 * time.Second)
	if len(rec.calls) != 1 {
		t.Errorf("stopped call fired: %v", rec.calls)
	}
}

func TestDebouncer_RealClock(t *testing.T) {
	done := make(chan int, 4)
	d := New(func(n int) { done <- n }, 20*time.Millisecond)

	for i := 1; i <= 3; i++ {
		d.Call(i)
	}

	select {
	case n := <-done:
		if n != 3 {
			t.Errorf("got %d, want 3", n)
		}
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}

	select {
	case n := <-done:
		t.Errorf("unexpected extra call %d", n)
	case <-time.After(60 * time.Millisecond):
	}
}
