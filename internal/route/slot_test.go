package route

import (
	"sync"
	"testing"
	"time"
)

func TestSlotLastWriteWins(t *testing.T) {
	s := NewSlot()
	if _, ok := s.Peek(); ok {
		t.Fatalf("expected empty slot")
	}

	s.Set(TabDestination{Tab: TabInvites})
	s.Set(EventDetail{EventID: "e1"})

	got, ok := s.Peek()
	if !ok || got != (EventDetail{EventID: "e1"}) {
		t.Fatalf("expected latest destination, got %#v", got)
	}
	// Peek is idempotent
	if again, _ := s.Peek(); again != got {
		t.Fatalf("expected peek to keep destination")
	}

	got, ok = s.Take()
	if !ok || got != (EventDetail{EventID: "e1"}) {
		t.Fatalf("expected take to return destination, got %#v", got)
	}
	if _, ok := s.Take(); ok {
		t.Fatalf("expected slot cleared after take")
	}
}

func TestSlotClear(t *testing.T) {
	var s Slot
	s.Set(FriendSection{Section: SectionSent})
	s.Clear()
	if _, ok := s.Peek(); ok {
		t.Fatalf("expected empty slot after clear")
	}
}

func TestSlotChangedWakesObserver(t *testing.T) {
	s := NewSlot()
	changed := s.Changed()

	done := make(chan Destination, 1)
	go func() {
		<-changed
		d, _ := s.Take()
		done <- d
	}()

	s.Set(TabDestination{Tab: TabSettings})

	select {
	case d := <-done:
		if d != (TabDestination{Tab: TabSettings}) {
			t.Fatalf("unexpected destination %#v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("observer was not woken")
	}

	select {
	case <-s.Changed():
		t.Fatalf("expected fresh changed channel to be open")
	default:
	}
}

func TestSlotConcurrentSetAndTake(t *testing.T) {
	s := NewSlot()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(TabDestination{Tab: TabFriends})
		}()
		go func() {
			defer wg.Done()
			s.Take()
		}()
	}
	wg.Wait()
}
