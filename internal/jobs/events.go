package jobs

import "time"

// EventJobAdded fires after a job is first saved and becomes Queued.
const EventJobAdded = "job_added"

// Event describes a lifecycle notification.
type Event struct {
	Name string
	Job  *Job
	At   time.Time
}

// Listener receives events synchronously on the goroutine that caused them.
type Listener func(Event)

// Subscribe registers l and returns a function that removes it.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := m.nextListener
	m.nextListener++
	m.listeners[key] = l

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, key)
	}
}

func (m *Manager) emit(e Event) {
	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for key := 0; key < m.nextListener; key++ {
		if l, ok := m.listeners[key]; ok {
			listeners = append(listeners, l)
		}
	}
	m.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
