package workflow

import "sync"

// runLocks serializes work on a single run. Entries are dropped once no
// caller holds or waits for them.
type runLocks struct {
	mu sync.Mutex
	m  map[string]*runLock
}

type runLock struct {
	sync.Mutex
	refs int
}

func (l *runLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = map[string]*runLock{}
	}
	rl, ok := l.m[key]
	if !ok {
		rl = &runLock{}
		l.m[key] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		l.mu.Lock()
		if rl.refs--; rl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
