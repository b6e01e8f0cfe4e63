package session

import (
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session: closed")

// actor runs queued operations one at a time on a single goroutine. The
// queue is unbounded so post never blocks, which lets transport goroutines
// and timer callbacks hand work over without waiting.
type actor struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newActor() *actor {
	a := &actor{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go a.loop()

	return a
}

// post enqueues fn. Operations are run in the order they were posted.
func (a *actor) post(fn func()) {
	a.mu.Lock()
	a.queue = append(a.queue, fn)
	a.mu.Unlock()

	select {
	case a.signal <- struct{}{}:
	default:
	}
}

// exec posts fn and waits for it to run. It must not be called from an
// operation running on the actor.
func (a *actor) exec(fn func()) error {
	ran := make(chan struct{})
	a.post(func() {
		defer close(ran)
		fn()
	})

	select {
	case <-ran:
		return nil
	case <-a.done:
		return ErrClosed
	}
}

func (a *actor) loop() {
	for {
		select {
		case <-a.done:
			return
		case <-a.signal:
		}

		for {
			a.mu.Lock()
			batch := a.queue
			a.queue = nil
			a.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				select {
				case <-a.done:
					return
				default:
				}
				fn()
			}
		}
	}
}

func (a *actor) stop() {
	a.once.Do(func() { close(a.done) })
}
