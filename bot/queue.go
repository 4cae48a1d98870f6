package bot

import (
	"fmt"
	"strings"
)

// Action names a deferred outbound operation.
type Action string

// ActionWhois looks up a user so the auto-op policy can be evaluated against their origin.
const ActionWhois Action = "whois"

// WorkItem is a unit of deferred work. For ActionWhois, Args is [channel, nick].
type WorkItem struct {
	Action Action
	Args   []string
}

// WhoisItem builds the lookup for nick, remembering the channel that triggered it.
func WhoisItem(channel, nick string) WorkItem {
	return WorkItem{Action: ActionWhois, Args: []string{channel, nick}}
}

// Arg returns the i-th argument or "".
func (w WorkItem) Arg(i int) string {
	if i < 0 || i >= len(w.Args) {
		return ""
	}
	return w.Args[i]
}

// String renders the item for logs, e.g. "WHOIS alice (#go)".
func (w WorkItem) String() string {
	if w.Action == ActionWhois {
		return fmt.Sprintf("WHOIS %s (%s)", w.Arg(1), w.Arg(0))
	}
	return strings.ToUpper(string(w.Action)) + " " + strings.Join(w.Args, " ")
}

func (w WorkItem) key() string {
	return string(w.Action) + "\x00" + strings.Join(w.Args, "\x00")
}

// Queue is the FIFO of deferred work. An item identical to one already pending is not added
// again, so repeated NAMES refreshes do not multiply lookups.
type Queue struct {
	items   []WorkItem
	pending map[string]struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{pending: make(map[string]struct{})}
}

// Enqueue appends item at the tail. It returns false if an identical item is already waiting.
func (q *Queue) Enqueue(item WorkItem) bool {
	k := item.key()
	if _, dup := q.pending[k]; dup {
		return false
	}
	q.pending[k] = struct{}{}
	q.items = append(q.items, item)
	return true
}

// DrainOne removes and returns the head. ok is false when the queue is empty.
func (q *Queue) DrainOne() (item WorkItem, ok bool) {
	if len(q.items) == 0 {
		return WorkItem{}, false
	}
	item = q.items[0]
	q.items[0] = WorkItem{}
	q.items = q.items[1:]
	delete(q.pending, item.key())
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

// Reset discards every waiting item.
func (q *Queue) Reset() {
	q.items = nil
	q.pending = make(map[string]struct{})
}

// Len returns the number of waiting items.
func (q *Queue) Len() int { return len(q.items) }

// Snapshot returns a copy of the waiting items in drain order.
func (q *Queue) Snapshot() []WorkItem {
	out := make([]WorkItem, len(q.items))
	copy(out, q.items)
	return out
}
