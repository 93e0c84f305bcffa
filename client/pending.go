package client

import (
	"sync"
	"time"

	"github.com/lensbridge/camlink/protocol"
	"github.com/lensbridge/camlink/types"
)

// callResult is delivered to a waiting caller: either the matching response
// envelope or a terminal error (connection lost, client closed).
type callResult struct {
	resp *protocol.Response
	err  error
}

// pendingCall tracks one in-flight request.
type pendingCall struct {
	id        int64
	method    string
	submitted time.Time
	done      chan callResult // buffered, capacity 1
}

// pendingRegistry maps outstanding correlation ids to the callers awaiting
// their results. Ids are strictly increasing for the life of the client and
// are never reused, so a late response for a removed id can only be dropped,
// never misdelivered.
type pendingRegistry struct {
	mu     sync.Mutex
	nextID int64
	calls  map[int64]*pendingCall
	logger types.Logger
}

func newPendingRegistry(logger types.Logger) *pendingRegistry {
	return &pendingRegistry{
		calls:  make(map[int64]*pendingCall),
		logger: logger,
	}
}

// register assigns the next correlation id and records the call.
func (r *pendingRegistry) register(method string) *pendingCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	pc := &pendingCall{
		id:        r.nextID,
		method:    method,
		submitted: time.Now(),
		done:      make(chan callResult, 1),
	}
	r.calls[pc.id] = pc
	return pc
}

// resolve delivers a response to the caller awaiting its id and removes the
// entry. Duplicate or late responses log a warning and are dropped.
func (r *pendingRegistry) resolve(id int64, resp *protocol.Response) bool {
	r.mu.Lock()
	pc, ok := r.calls[id]
	if ok {
		delete(r.calls, id)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("no pending call for response id %d, dropping", id)
		return false
	}
	pc.done <- callResult{resp: resp}
	return true
}

// remove withdraws a call without delivering anything. Used by the caller
// itself on timeout or context cancellation.
func (r *pendingRegistry) remove(id int64) {
	r.mu.Lock()
	delete(r.calls, id)
	r.mu.Unlock()
}

// has reports whether an id is currently outstanding.
func (r *pendingRegistry) has(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.calls[id]
	return ok
}

// size returns the number of outstanding calls.
func (r *pendingRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// failAll rejects every outstanding call with the given error and clears the
// registry. Invoked on every disconnect so no call can hang across a
// reconnect.
func (r *pendingRegistry) failAll(err error) {
	r.mu.Lock()
	failed := make([]*pendingCall, 0, len(r.calls))
	for _, pc := range r.calls {
		failed = append(failed, pc)
	}
	r.calls = make(map[int64]*pendingCall)
	r.mu.Unlock()

	for _, pc := range failed {
		pc.done <- callResult{err: err}
	}
	if len(failed) > 0 {
		r.logger.Debug("failed %d pending calls: %v", len(failed), err)
	}
}
