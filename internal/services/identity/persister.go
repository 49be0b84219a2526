package identity

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"nostrid/internal/logging"
)

// job is one unit of background work. done is nil for fire-and-forget jobs,
// whose errors are logged instead of returned.
type job struct {
	name string
	run  func(ctx context.Context) error
	done chan error
}

// persister runs jobs one at a time, in the order they were queued, on a
// single goroutine. Queuing never blocks.
type persister struct {
	log *logrus.Entry

	mtx    sync.Mutex
	queue  []job
	closed bool

	// wake signals that the queue changed. Capacity 1, sends never block.
	wake chan struct{}
	// exited is closed when the worker goroutine returns.
	exited chan struct{}
}

func newPersister(log *logrus.Entry) *persister {
	p := &persister{
		log:    log,
		wake:   make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
	go p.loop()
	return p
}

// schedule queues a fire-and-forget job. It reports false if the worker
// has been closed.
func (p *persister) schedule(name string, run func(ctx context.Context) error) bool {
	return p.enqueue(job{name: name, run: run})
}

// submit queues a job and waits for its result. Waiting stops early when
// ctx is done, but the job still runs.
func (p *persister) submit(ctx context.Context, name string, run func(ctx context.Context) error) error {
	j := job{name: name, run: run, done: make(chan error, 1)}
	if !p.enqueue(j) {
		return ErrClosed
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) enqueue(j job) bool {
	p.mtx.Lock()
	if p.closed {
		p.mtx.Unlock()
		return false
	}
	p.queue = append(p.queue, j)
	p.mtx.Unlock()

	p.signal()
	return true
}

func (p *persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// next pops the head of the queue.
func (p *persister) next() (j job, ok bool, closed bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if len(p.queue) > 0 {
		j = p.queue[0]
		p.queue[0] = job{}
		p.queue = p.queue[1:]
		return j, true, p.closed
	}
	return job{}, false, p.closed
}

func (p *persister) loop() {
	defer close(p.exited)
	for {
		j, ok, closed := p.next()
		if ok {
			p.exec(j)
			continue
		}
		if closed {
			return
		}
		<-p.wake
	}
}

func (p *persister) exec(j job) {
	err := j.run(context.Background())
	if j.done != nil {
		j.done <- err
		return
	}
	if err != nil {
		p.log.WithError(err).
			WithFields(logging.OperationFields(j.name, "failed")).
			Error("background job failed")
		return
	}
	p.log.WithFields(logging.OperationFields(j.name, "done")).Debug("background job finished")
}

// close stops accepting jobs, runs what is already queued, and waits for
// the worker to exit.
func (p *persister) close() {
	p.mtx.Lock()
	p.closed = true
	p.mtx.Unlock()

	p.signal()
	<-p.exited
}
