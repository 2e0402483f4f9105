package crawler

// Snapshot is the progress information handed to observers after each
// completed task.
type Snapshot struct {
	// PagesScanned is the number of completed tasks, history skips included.
	PagesScanned int

	// QueuedRemaining estimates the pages still waiting in the frontier.
	QueuedRemaining int

	// DeadLinksFound is the number of dead-link records so far.
	DeadLinksFound int

	// MaxDepthSeen is the deepest dispatched task so far.
	MaxDepthSeen int
}

// Observer receives periodic progress updates from a session. The core
// calls it synchronously from workers, so implementations must be
// concurrency-safe and fast; rendering belongs to the caller.
type Observer interface {
	Progress(Snapshot)
}

type nopObserver struct{}

func (nopObserver) Progress(Snapshot) {}

// NopObserver returns an Observer that discards all updates.
func NopObserver() Observer {
	return nopObserver{}
}
