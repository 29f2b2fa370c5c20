package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store with TTL support. It backs tests and the
// --kv=memory single-node mode. Writes are counted so tests can prove the
// dry-run invariant (no writes on any exit path).
type Memory struct {
	mu     sync.Mutex
	m      map[string]memEntry
	writes int
}

type memEntry struct {
	b   []byte
	exp time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]memEntry)}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false, nil
	}
	return append([]byte(nil), e.b...), true, nil
}

func (s *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, val, ttl)
	return nil
}

func (s *Memory) SetNX(_ context.Context, key string, val []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.m[key]; ok && (e.exp.IsZero() || time.Now().Before(e.exp)) {
		return false, nil
	}
	s.put(key, val, ttl)
	return true, nil
}

func (s *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.m[key]; ok {
		if ttl > 0 {
			e.exp = time.Now().Add(ttl)
		} else {
			e.exp = time.Time{}
		}
		s.m[key] = e
		s.writes++
	}
	return nil
}

func (s *Memory) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	s.writes++
	return nil
}

func (s *Memory) Ping(context.Context) error { return nil }

func (s *Memory) put(key string, val []byte, ttl time.Duration) {
	e := memEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	s.m[key] = e
	s.writes++
}

// WriteCount returns the number of mutating calls seen so far.
func (s *Memory) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// KeysWithPrefix lists live keys matching the prefix, for test assertions.
func (s *Memory) KeysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	now := time.Now()
	for k, e := range s.m {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !e.exp.IsZero() && now.After(e.exp) {
			continue
		}
		out = append(out, k)
	}
	return out
}
