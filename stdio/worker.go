package stdio

import (
	"sync"

	"github.com/ggoodman/mcp-stdio-go/internal/engine"
	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

// job is one unit of ordered output: either a tool call to run or a response
// that was ready immediately but must not overtake an earlier call.
type job struct {
	call *engine.PendingCall
	resp *jsonrpc.Response
}

// serialQueue runs non-concurrent tool calls one at a time in arrival order.
// The queue is unbounded so that a slow tool never blocks the read loop,
// which must stay free to observe cancellations.
type serialQueue struct {
	mu      sync.Mutex
	pending []job
	active  bool
	closed  bool
	wake    chan struct{}
}

func newSerialQueue() *serialQueue {
	return &serialQueue{wake: make(chan struct{}, 1)}
}

func (q *serialQueue) push(j job) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		if j.call != nil {
			j.call.Discard()
		}
		return
	}
	q.pending = append(q.pending, j)
	q.mu.Unlock()
	q.signal()
}

// pushIfBusy queues resp behind outstanding work and reports whether it did.
// An idle queue leaves the write to the caller. Only the read loop pushes, so
// an idle queue stays idle until its next push.
func (q *serialQueue) pushIfBusy(resp *jsonrpc.Response) bool {
	q.mu.Lock()
	busy := !q.closed && (q.active || len(q.pending) > 0)
	if busy {
		q.pending = append(q.pending, job{resp: resp})
	}
	q.mu.Unlock()
	if busy {
		q.signal()
	}
	return busy
}

func (q *serialQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// close stops accepting jobs. Jobs already queued still run.
func (q *serialQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// run executes queued jobs until the queue is closed and drained.
func (q *serialQueue) run(exec func(job)) {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		j := q.pending[0]
		q.pending[0] = job{}
		q.pending = q.pending[1:]
		q.active = true
		q.mu.Unlock()

		exec(j)

		q.mu.Lock()
		q.active = false
		q.mu.Unlock()
	}
}
