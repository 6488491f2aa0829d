package build

import (
	"sync"
	"time"

	"github.com/forgeworks/appforge/internal/domain/session"
)

// EventType enumerates the build progress event vocabulary.
type EventType string

const (
	EventStatus        EventType = "status"
	EventFile          EventType = "file"
	EventPreviewReady  EventType = "preview_ready"
	EventBuildComplete EventType = "build_complete"
	EventError         EventType = "error"
)

// FilePayload carries one produced artifact. Content is included so
// transports can stream it without touching the filesystem.
type FilePayload struct {
	Path    string
	Content []byte
}

// Event is one ordered progress notification for a session. Seq increases
// monotonically per session across builds; subscribers can detect drops.
type Event struct {
	Type      EventType
	SessionID string
	BuildID   string
	Seq       uint64
	At        time.Time

	Status    session.BuildStatus // EventStatus
	File      *FilePayload        // EventFile; EventPreviewReady carries index.html
	Artifacts *session.Artifacts  // EventBuildComplete
	Message   string              // EventError reason, EventStatus detail
}

// subscriberBuffer bounds each subscriber channel. A subscriber that falls
// this far behind starts losing events rather than stalling the build.
const subscriberBuffer = 256

// Broadcaster fans build events out to per-session subscribers. Publishing
// never blocks; events for sessions with no subscribers are discarded.
type Broadcaster struct {
	mu     sync.RWMutex
	seq    map[string]uint64
	subs   map[string]map[int]chan Event
	nextID int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		seq:  make(map[string]uint64),
		subs: make(map[string]map[int]chan Event),
	}
}

// Subscribe registers for a session's events. The returned cancel func must
// be called to release the subscription; the channel closes after cancel.
func (b *Broadcaster) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]chan Event)
	}
	subID := b.nextID
	b.nextID++
	b.subs[sessionID][subID] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[sessionID]; ok {
			if c, ok := set[subID]; ok {
				delete(set, subID)
				close(c)
			}
			if len(set) == 0 {
				delete(b.subs, sessionID)
			}
		}
	}
	return ch, cancel
}

// SubscriberCount reports active subscriptions for a session.
func (b *Broadcaster) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}

// Publish stamps the event with the session's next sequence number and
// delivers it to every subscriber without blocking.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq[ev.SessionID]++
	ev.Seq = b.seq[ev.SessionID]
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	// Sends stay under the lock so a concurrent cancel cannot close a
	// channel mid-delivery. They never block: saturated subscribers drop
	// events rather than stall the build.
	for _, ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
