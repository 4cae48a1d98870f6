package bot

import "sort"

// Tracker is the set of channels the bot occupies, as acknowledged by the server.
// It is only changed by the bot's own join/part/kick events, never by configuration.
type Tracker struct {
	channels map[string]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{channels: make(map[string]struct{})}
}

// OnJoin records a join seen from who. It returns true when who is the bot itself
// (the channel is now occupied). For anyone else it returns false and the caller runs
// the join-time moderation check.
func (t *Tracker) OnJoin(channel, who, self string) bool {
	if who != self {
		return false
	}
	t.channels[channel] = struct{}{}
	return true
}

// OnPart records a part. Only the bot's own departures change membership; it returns true then.
// Parting a channel that is not tracked is a no-op.
func (t *Tracker) OnPart(channel, who, self string) bool {
	if who != self {
		return false
	}
	if _, ok := t.channels[channel]; !ok {
		return false
	}
	delete(t.channels, channel)
	return true
}

// Has reports whether channel is occupied.
func (t *Tracker) Has(channel string) bool {
	_, ok := t.channels[channel]
	return ok
}

// List returns the occupied channels sorted by name.
func (t *Tracker) List() []string {
	out := make([]string, 0, len(t.channels))
	for ch := range t.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of occupied channels.
func (t *Tracker) Len() int { return len(t.channels) }

// Reset forgets all channels. Used when a fresh session is established.
func (t *Tracker) Reset() {
	t.channels = make(map[string]struct{})
}
