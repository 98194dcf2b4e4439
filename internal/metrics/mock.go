package metrics

import "sync"

// Mock records calls for tests. It is safe for concurrent use.
type Mock struct {
	mu          sync.Mutex
	subscribers int
	publishes   int
	dropped     int
	mutations   map[string]int
}

func NewMock() *Mock {
	return &Mock{mutations: make(map[string]int)}
}

func (m *Mock) SetSubscribers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = n
}

func (m *Mock) IncPublishes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishes++
}

func (m *Mock) IncDroppedSubscribers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

func (m *Mock) IncMutations(op string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.mutations[op]++
	} else {
		m.mutations[op+":failed"]++
	}
}

func (m *Mock) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribers
}

func (m *Mock) Publishes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publishes
}

func (m *Mock) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Mutations returns the count for op; failed calls are keyed "op:failed".
func (m *Mock) Mutations(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations[key]
}
