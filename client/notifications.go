package client

import (
	"sync"

	"github.com/lensbridge/camlink/protocol"
	"github.com/lensbridge/camlink/types"
)

// NotificationHandler processes one server-pushed event.
type NotificationHandler func(n *protocol.Notification) error

// subscription is one registered listener for a method name.
type subscription struct {
	id      int
	handler NotificationHandler
}

// notificationRouter demultiplexes push events by method name to zero or more
// listeners. Dispatch preserves subscription order; a failing handler is
// logged and never prevents the rest from running.
type notificationRouter struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]*subscription
	logger types.Logger
}

func newNotificationRouter(logger types.Logger) *notificationRouter {
	return &notificationRouter{
		subs:   make(map[string][]*subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for an exact method name and returns its
// unsubscribe function. Multiple handlers may exist for the same method.
func (r *notificationRouter) Subscribe(method string, handler NotificationHandler) func() {
	r.mu.Lock()
	r.nextID++
	sub := &subscription{id: r.nextID, handler: handler}
	r.subs[method] = append(r.subs[method], sub)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.subs[method]
		for i, s := range list {
			if s.id == sub.id {
				r.subs[method] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(r.subs[method]) == 0 {
			delete(r.subs, method)
		}
	}
}

// Dispatch fans a notification out to every listener for its method, in
// subscription order. Unknown methods are logged and dropped.
func (r *notificationRouter) Dispatch(n *protocol.Notification) {
	r.mu.RLock()
	list := r.subs[n.Method]
	handlers := make([]NotificationHandler, len(list))
	for i, s := range list {
		handlers[i] = s.handler
	}
	r.mu.RUnlock()

	if len(handlers) == 0 {
		r.logger.Debug("no listeners for notification %q, dropping", n.Method)
		return
	}
	for _, h := range handlers {
		r.invoke(h, n)
	}
}

// invoke isolates one handler: panics and errors are logged, never propagated.
func (r *notificationRouter) invoke(h NotificationHandler, n *protocol.Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("notification handler for %q panicked: %v", n.Method, rec)
		}
	}()
	if err := h(n); err != nil {
		r.logger.Error("notification handler error for %q: %v", n.Method, err)
	}
}

// size returns the number of listeners for a method. Used by tests.
func (r *notificationRouter) size(method string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[method])
}
