package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerManager_AddTimer(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	var fired int64
	m.AddTimer(50*time.Millisecond, 0, func() {
		atomic.AddInt64(&fired, 1)
	})

	time.Sleep(300 * time.Millisecond)

	if atomic.LoadInt64(&fired) != 1 {
		t.Errorf("Expected the timer to fire once, got %d", atomic.LoadInt64(&fired))
	}
}

func TestTimerManager_RemoveTimer(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	var fired int64
	id := m.AddTimer(time.Second, 0, func() {
		atomic.AddInt64(&fired, 1)
	})
	m.RemoveTimer(id)

	time.Sleep(200 * time.Millisecond)

	if atomic.LoadInt64(&fired) != 0 {
		t.Errorf("Removed timer should not fire, got %d", atomic.LoadInt64(&fired))
	}
}

func TestTimerManager_Interval(t *testing.T) {
	m := NewTimerManager()
	defer m.Stop()

	var fired int64
	m.AddTimer(50*time.Millisecond, 100*time.Millisecond, func() {
		atomic.AddInt64(&fired, 1)
	})

	time.Sleep(450 * time.Millisecond)

	if atomic.LoadInt64(&fired) < 2 {
		t.Errorf("Expected a repeating timer to fire at least twice, got %d", atomic.LoadInt64(&fired))
	}
}
