// Package actor provides a minimal single-goroutine mailbox: the building
// block the actor components in agraphstore (Graph, MutationsLog, Remotes)
// use to serialize access to their own state without exposing a mutex to
// callers.
package actor

// Mailbox runs queued commands one at a time on a dedicated goroutine.
// Commands are plain closures; callers that need a result close over a
// channel and read it after Send returns.
type Mailbox struct {
	commands chan func()
	stopped  chan struct{}
}

// NewMailbox starts the mailbox's goroutine and returns immediately.
func NewMailbox(queueDepth int) *Mailbox {
	if queueDepth <= 0 {
		queueDepth = 64
	}

	m := &Mailbox{
		commands: make(chan func(), queueDepth),
		stopped:  make(chan struct{}),
	}

	go m.run()

	return m
}

func (m *Mailbox) run() {
	defer close(m.stopped)

	for cmd := range m.commands {
		cmd()
	}
}

// Send enqueues cmd for execution on the mailbox goroutine. It never blocks
// on cmd's execution, only on the queue having room.
func (m *Mailbox) Send(cmd func()) {
	m.commands <- cmd
}

// Close stops accepting new commands and waits for the goroutine to drain
// and exit. Calling Send after Close panics, matching a closed channel.
func (m *Mailbox) Close() {
	close(m.commands)
	<-m.stopped
}

// Call runs fn on the mailbox goroutine and blocks until it has run,
// returning whatever error fn produced. Use this for request/response-style
// calls where the caller needs a synchronous result.
func Call[T any](m *Mailbox, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	reply := make(chan result, 1)

	m.Send(func() {
		v, err := fn()
		reply <- result{value: v, err: err}
	})

	r := <-reply

	return r.value, r.err
}

// Cast runs fn on the mailbox goroutine without waiting for it to finish,
// the fire-and-forget counterpart to Call.
func Cast(m *Mailbox, fn func()) {
	m.Send(fn)
}
