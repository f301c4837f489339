package pty

import "sync"

// mailbox is an unbounded FIFO between the background goroutines of a
// session and its consumer. put never blocks.
type mailbox struct {
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// put enqueues ev. Events put after close are dropped.
func (m *mailbox) put(ev Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	m.wake()
}

// close stops accepting events. Queued events are still delivered.
func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wake()
}

func (m *mailbox) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// take returns the queued events, blocking until there is at least one or
// the mailbox is closed and drained (ok == false).
func (m *mailbox) take() (batch []Event, ok bool) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			batch = m.queue
			m.queue = nil
			m.mu.Unlock()
			return batch, true
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, false
		}
		<-m.notify
	}
}

// dispatch delivers events to c until the mailbox is closed and drained.
// Data queued after the exit event is dropped.
func (m *mailbox) dispatch(c Consumer) {
	exited := false
	for {
		batch, ok := m.take()
		if !ok {
			return
		}
		for _, ev := range batch {
			if exited {
				continue
			}
			if ev.Kind == EventExit {
				exited = true
			}
			c.HandleEvent(ev)
		}
	}
}
