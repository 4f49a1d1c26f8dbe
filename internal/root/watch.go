package root

import (
	"sync"

	"github.com/sekas/sekas/pkg/types"
)

// WatchHub fans out cluster-metadata change events to subscribed watchers
// (SPEC_FULL.md supplement, grounded on original_source/root/mod.rs's
// WatchHub/notify_updates).
type WatchHub struct {
	mu    sync.Mutex
	subs  map[uint64]chan NodeEvent
	nextI uint64
}

// NodeEvent is one node-lifecycle change notification.
type NodeEvent struct {
	Node   types.Node
	Delete bool
}

// NewWatchHub returns an empty hub.
func NewWatchHub() *WatchHub {
	return &WatchHub{subs: make(map[uint64]chan NodeEvent)}
}

// Subscribe registers a new watcher, returning its id and event channel.
func (h *WatchHub) Subscribe() (uint64, <-chan NodeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextI++
	id := h.nextI
	ch := make(chan NodeEvent, 16)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a watcher and closes its channel.
func (h *WatchHub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// NotifyNodeUpdated implements WatchNotifier: broadcasts a node change to
// every subscriber, dropping the event for a watcher whose buffer is full
// rather than blocking the root leadership loop on a slow subscriber.
func (h *WatchHub) NotifyNodeUpdated(n types.Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- NodeEvent{Node: n}:
		default:
		}
	}
}
