package crawler

import "sync"

// Task is one unit of crawl work: a canonical URL, its depth from the
// base URL, and the page it was discovered on (empty for the seed).
type Task struct {
	URL        string
	Depth      int
	SourcePage string
}

// RejectReason explains why the frontier refused an enqueue.
// Rejections are informational, not errors: budget and depth pruning are
// expected behavior on any non-trivial site.
type RejectReason int

const (
	// RejectNone means the enqueue was accepted.
	RejectNone RejectReason = iota

	// RejectAlreadyVisited means the canonical URL is already tracked,
	// regardless of whether it is queued, in progress, or done.
	RejectAlreadyVisited

	// RejectDepthExceeded means the task depth is beyond the depth budget.
	RejectDepthExceeded

	// RejectBudgetExhausted means the page budget has been fully allocated.
	RejectBudgetExhausted

	// RejectClosed means the frontier was closed by cancellation.
	RejectClosed
)

// String returns the reject reason for logging.
func (r RejectReason) String() string {
	switch r {
	case RejectNone:
		return "accepted"
	case RejectAlreadyVisited:
		return "already visited"
	case RejectDepthExceeded:
		return "depth exceeded"
	case RejectBudgetExhausted:
		return "budget exhausted"
	default:
		return "frontier closed"
	}
}

// taskState tracks a visited entry through its lifetime. Entries are
// created on first discovery and never deleted during a run.
type taskState int

const (
	stateQueued taskState = iota
	stateInProgress
	stateDone
)

// Frontier is the shared crawl queue plus visited set. It enforces the
// depth and page budgets, guarantees each canonical URL is accepted at
// most once, and hands out tasks in FIFO order so the crawl proceeds
// breadth-first: all of depth D is discovered before depth D+1 expands,
// bounding the worst-case depth overrun to one level under concurrency.
//
// Design decision: A mutex plus sync.Cond rather than channels, because
// Dequeue must distinguish "momentarily empty while work is in flight"
// (block) from "empty with nothing in flight" (exhausted), which a plain
// channel cannot express. Critical sections never perform I/O.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	queue   []Task
	visited map[string]taskState

	maxDepth int
	maxPages int

	accepted int
	inFlight int
	closed   bool
}

// NewFrontier creates a Frontier with the given budgets.
func NewFrontier(maxPages, maxDepth int) *Frontier {
	f := &Frontier{
		visited:  make(map[string]taskState),
		maxDepth: maxDepth,
		maxPages: maxPages,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// TryEnqueue offers a URL to the frontier. The visited-set insertion and
// the queue append happen atomically, so two workers discovering the same
// link concurrently result in exactly one acceptance.
func (f *Frontier) TryEnqueue(url string, depth int, sourcePage string) (bool, RejectReason) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false, RejectClosed
	}
	if depth > f.maxDepth {
		return false, RejectDepthExceeded
	}
	if _, ok := f.visited[url]; ok {
		return false, RejectAlreadyVisited
	}
	if f.accepted >= f.maxPages {
		return false, RejectBudgetExhausted
	}

	f.visited[url] = stateQueued
	f.accepted++
	f.queue = append(f.queue, Task{URL: url, Depth: depth, SourcePage: sourcePage})
	f.cond.Signal()
	return true, RejectNone
}

// Dequeue returns the next task in breadth-first order. It blocks while
// the queue is empty but tasks are still in flight (those tasks may
// discover more work), and returns ok=false once the frontier is
// exhausted or closed.
func (f *Frontier) Dequeue() (Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.queue) == 0 && !f.closed && f.inFlight > 0 {
		f.cond.Wait()
	}
	if len(f.queue) == 0 || f.closed {
		// Wake the remaining blocked workers so they observe exhaustion.
		f.cond.Broadcast()
		return Task{}, false
	}

	task := f.queue[0]
	f.queue = f.queue[1:]
	f.visited[task.URL] = stateInProgress
	f.inFlight++
	return task, true
}

// Done marks a dequeued task as completed. Once the last in-flight task
// finishes with an empty queue, blocked workers are released.
func (f *Frontier) Done(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.visited[url] = stateDone
	f.inFlight--
	if f.inFlight == 0 && len(f.queue) == 0 {
		f.cond.Broadcast()
	}
}

// Close stops the frontier: no new enqueues are accepted and blocked
// workers are released. In-flight tasks are allowed to finish; this is
// the cooperative-cancellation half of session shutdown.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.queue = nil
	f.cond.Broadcast()
}

// Stats is a point-in-time snapshot of frontier accounting.
type Stats struct {
	// Accepted is the number of URLs ever accepted; never exceeds maxPages.
	Accepted int

	// Queued is the number of tasks waiting for a worker.
	Queued int

	// InFlight is the number of dequeued, unfinished tasks.
	InFlight int
}

// Stats returns current frontier accounting.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{Accepted: f.accepted, Queued: len(f.queue), InFlight: f.inFlight}
}
