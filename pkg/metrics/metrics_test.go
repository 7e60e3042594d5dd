package metrics

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestJSONLObserverWritesTags(t *testing.T) {
	var buf bytes.Buffer
	o := NewJSONLObserver(&buf)
	o.RecordEvent(ScoreEvent("deepgram", "cs-news-01", 4.17))

	line := buf.String()
	for _, want := range []string{`"name":"score_computed"`, `"provider":"deepgram"`, `"asset":"cs-news-01"`, `"value":4.17`} {
		if !strings.Contains(line, want) {
			t.Fatalf("jsonl line missing %s: %s", want, line)
		}
	}
}

func TestAsyncObserverDrainsOnClose(t *testing.T) {
	mem := NewMemoryObserver()
	a := NewAsyncObserver(mem, 8)
	for i := 0; i < 5; i++ {
		a.RecordEvent(SessionEvent(EventSessionComplete, "mock", "a", time.Second))
	}
	a.Close()
	if got := len(mem.Events()); got != 5 {
		t.Fatalf("expected 5 events after close, got %d", got)
	}
	// Recording after close is a silent no-op.
	a.RecordEvent(ScoreEvent("mock", "a", 0))
	if got := len(mem.Events()); got != 5 {
		t.Fatalf("events recorded after close: %d", got)
	}
}

func TestAsyncObserverDropsWhenFull(t *testing.T) {
	blocker := make(chan struct{})
	slow := observerFunc(func(Event) { <-blocker })
	a := NewAsyncObserver(slow, 1)
	for i := 0; i < 10; i++ {
		a.RecordEvent(ScoreEvent("mock", "a", 0))
	}
	if a.Dropped() == 0 {
		t.Fatalf("full buffer must drop, not block")
	}
	close(blocker)
	a.Close()
}

type observerFunc func(Event)

func (f observerFunc) RecordEvent(ev Event) { f(ev) }

func TestAsyncObserverCloseRacesRecord(t *testing.T) {
	var recorded int64
	a := NewAsyncObserver(observerFunc(func(Event) { atomic.AddInt64(&recorded, 1) }), 4)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					a.RecordEvent(ScoreEvent("mock", "a", 0))
				}
			}
		}()
	}
	time.Sleep(5 * time.Millisecond)
	a.Close()
	close(stop)
	wg.Wait()
}
