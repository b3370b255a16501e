package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. FailWrites makes Put and Delete fail,
// which tests use to exercise backend fallback.
type MemoryStore struct {
	mu         sync.RWMutex
	name       string
	data       map[string]memObject
	FailWrites bool
	FailReads  bool
}

type memObject struct {
	content  []byte
	modified time.Time
}

var ErrInjected = errors.New("injected storage failure")

func NewMemoryStore(name string) *MemoryStore {
	if name == "" {
		name = "memory"
	}
	return &MemoryStore{name: name, data: make(map[string]memObject)}
}

func (s *MemoryStore) Name() string { return s.name }

func (s *MemoryStore) URI(key string) string { return s.name + "://" + key }

func (s *MemoryStore) Put(_ context.Context, key string, content []byte, _ string) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrInjected
	}
	s.data[k] = memObject{content: append([]byte(nil), content...), modified: time.Now()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	k, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, ErrInjected
	}
	obj, ok := s.data[k]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.content...), nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]Object, error) {
	p := strings.Trim(strings.TrimSpace(prefix), "/")
	if p != "" {
		p += "/"
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, ErrInjected
	}
	out := make([]Object, 0, len(s.data))
	for k, obj := range s.data {
		if strings.HasPrefix(k, p) {
			out = append(out, Object{Key: k, Size: int64(len(obj.content)), Modified: obj.modified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return ErrInjected
	}
	if _, ok := s.data[k]; !ok {
		return ErrNotFound
	}
	delete(s.data, k)
	return nil
}

// Keys returns every stored key, sorted.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
