package room

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// outbox runs jobs one at a time in the order they were queued. Coordinators
// queue broadcasts while holding their lock and the I/O happens here, off the lock.
//
// close registers a final job. Jobs are still accepted until the queue drains
// and the final job is taken; push refuses them after that.
type outbox struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	closing bool
	closed  bool
	final   func()
	done    chan struct{}
}

func newOutbox() *outbox {
	o := &outbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go o.run()
	return o
}

// push queues job and reports whether it was accepted.
func (o *outbox) push(job func()) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, job)
	o.mu.Unlock()

	o.notify()
	return true
}

// close makes final the last job to run. Only the first call counts.
func (o *outbox) close(final func()) {
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		return
	}
	o.closing = true
	o.final = final
	o.mu.Unlock()

	o.notify()
}

// flush blocks until every job queued before the call has run.
func (o *outbox) flush() {
	ran := make(chan struct{})
	if !o.push(func() { close(ran) }) {
		<-o.done
		return
	}
	<-ran
}

func (o *outbox) notify() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) run() {
	defer close(o.done)
	for {
		o.mu.Lock()
		jobs := o.queue
		o.queue = nil
		var final func()
		finished := len(jobs) == 0 && o.closing
		if finished {
			o.closed = true
			final = o.final
		}
		o.mu.Unlock()

		for _, job := range jobs {
			o.exec(job)
		}
		if finished {
			if final != nil {
				o.exec(final)
			}
			return
		}
		if len(jobs) == 0 {
			<-o.wake
		}
	}
}

func (o *outbox) exec(job func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("outbox job panicked: %v", r)
		}
	}()
	job()
}
