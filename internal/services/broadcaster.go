package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rxtech-lab/auditsmart/internal/models"
)

// FieldChange announces that a session field was written by one store
// instance. A nil Value means the field was removed.
type FieldChange struct {
	SessionID string
	Field     models.SessionField
	Value     *string
	Origin    string
}

// Broadcaster fans field changes out to every store instance of the process,
// except the one that made the change. Delivery is asynchronous and ordered
// per subscriber. A ChangeFeed carries changes between processes.
type Broadcaster struct {
	node string

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	origin string
	fn     func(FieldChange)

	mu     sync.Mutex
	queue  []FieldChange
	notify chan struct{}
	done   chan struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{node: uuid.New().String(), subs: map[int]*subscriber{}}
}

// Node identifies this broadcaster in the change journal.
func (b *Broadcaster) Node() string {
	return b.node
}

// Subscribe registers fn for changes made by any origin other than origin.
// The returned func stops delivery; it is safe to call more than once.
func (b *Broadcaster) Subscribe(origin string, fn func(FieldChange)) func() {
	sub := &subscriber{
		origin: origin,
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish queues change for every other subscriber.
func (b *Broadcaster) Publish(change FieldChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.origin == change.Origin {
			continue
		}
		sub.push(change)
	}
}

func (s *subscriber) push(change FieldChange) {
	s.mu.Lock()
	s.queue = append(s.queue, change)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			change := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.fn(change)
		}
	}
}
