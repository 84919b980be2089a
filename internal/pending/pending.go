// Package pending keeps, per receiver, the destination of the last opened push until
// the app asks for it. A newer open replaces an older one; reading consumes it.
package pending

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"eventpush/internal/route"
)

type Store interface {
	Set(ctx context.Context, receiverID string, d route.Destination) error
	Take(ctx context.Context, receiverID string) (route.Destination, bool, error)
}

// Waiter is implemented by stores that can block until a destination arrives.
type Waiter interface {
	Wait(ctx context.Context, receiverID string) (route.Destination, bool, error)
}

const keyPrefix = "pending_route:"

const defaultPollInterval = 250 * time.Millisecond

// Redis stores the wire payload under pending_route:{receiver} with a TTL.
type Redis struct {
	Redis *redis.Client
	TTL   time.Duration

	// PollInterval is how often Wait re-checks the key.
	PollInterval time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{Redis: rdb, TTL: ttl}
}

func (r *Redis) Set(ctx context.Context, receiverID string, d route.Destination) error {
	p := route.Build(d)
	if p == nil {
		return errors.New("pending: unknown destination")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, keyPrefix+receiverID, b, r.TTL).Err()
}

func (r *Redis) Take(ctx context.Context, receiverID string) (route.Destination, bool, error) {
	b, err := r.Redis.GetDel(ctx, keyPrefix+receiverID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		// unreadable entry is already gone; treat as nothing pending
		return nil, false, nil
	}
	d, ok := route.ParseRoute(m)
	return d, ok, nil
}

// Wait polls Take until a destination appears or ctx is done.
func (r *Redis) Wait(ctx context.Context, receiverID string) (route.Destination, bool, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d, ok, err := r.Take(ctx, receiverID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false, nil
			}
			return nil, false, err
		}
		if ok {
			return d, true, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, false, nil
		}
	}
}

// Memory keeps one route.Slot per receiver. Single-process only. A receiver's slot is
// dropped once it is empty and nobody is waiting on it.
type Memory struct {
	mu      sync.Mutex
	slots   map[string]*route.Slot
	waiters map[string]int
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]*route.Slot), waiters: make(map[string]int)}
}

// slotLocked returns the receiver's slot, creating it. m.mu must be held.
func (m *Memory) slotLocked(receiverID string) *route.Slot {
	if m.slots == nil {
		m.slots = make(map[string]*route.Slot)
	}
	s, ok := m.slots[receiverID]
	if !ok {
		s = route.NewSlot()
		m.slots[receiverID] = s
	}
	return s
}

// pruneLocked drops an empty, unwatched slot. m.mu must be held.
func (m *Memory) pruneLocked(receiverID string) {
	if m.waiters[receiverID] > 0 {
		return
	}
	if s, ok := m.slots[receiverID]; ok {
		if _, pending := s.Peek(); !pending {
			delete(m.slots, receiverID)
		}
	}
}

func (m *Memory) Set(_ context.Context, receiverID string, d route.Destination) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slotLocked(receiverID).Set(d)
	return nil
}

func (m *Memory) Take(_ context.Context, receiverID string) (route.Destination, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[receiverID]
	if !ok {
		return nil, false, nil
	}
	d, ok := s.Take()
	m.pruneLocked(receiverID)
	return d, ok, nil
}

// Wait takes the pending destination, blocking until one is set or ctx is done.
// A done context is not an error: it just means nothing arrived.
func (m *Memory) Wait(ctx context.Context, receiverID string) (route.Destination, bool, error) {
	m.mu.Lock()
	if m.waiters == nil {
		m.waiters = make(map[string]int)
	}
	s := m.slotLocked(receiverID)
	m.waiters[receiverID]++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.waiters[receiverID]--; m.waiters[receiverID] <= 0 {
			delete(m.waiters, receiverID)
		}
		m.pruneLocked(receiverID)
		m.mu.Unlock()
	}()

	for {
		changed := s.Changed()
		if d, ok := s.Take(); ok {
			return d, true, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, false, nil
		}
	}
}

// size reports how many receivers currently hold a slot.
func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
