package bot

import "strings"

// namePrefixes are the membership markers a server may put in front of a nick in a NAMES reply.
const namePrefixes = "@+%&~"

// StripPrefix removes leading membership markers ("@alice" -> "alice", "@+bob" -> "bob").
func StripPrefix(token string) string {
	return strings.TrimLeft(token, namePrefixes)
}

// Correlator turns multi-line server replies into decisions.
//
// NAMES replies arrive as any number of 353 lines followed by a 366 terminator; lines for
// different channels may interleave, so accumulation is keyed by channel. WHOIS lookups are
// tracked by nick from the moment the lookup is sent until the 311 user line (or an
// end-of-whois / no-such-nick reply) comes back.
type Correlator struct {
	names  map[string][]string
	seen   map[string]map[string]struct{}
	lookup map[string][]string
}

// NewCorrelator returns an empty correlator.
func NewCorrelator() *Correlator {
	c := &Correlator{}
	c.Reset()
	return c
}

// Reset drops all partial state. Used when a fresh session is established.
func (c *Correlator) Reset() {
	c.names = make(map[string][]string)
	c.seen = make(map[string]map[string]struct{})
	c.lookup = make(map[string][]string)
}

// OnNamesLine accumulates one NAMES line for channel. Markers are stripped and a nick repeated
// within the same accumulation is kept once.
func (c *Correlator) OnNamesLine(channel string, tokens []string) {
	seen, ok := c.seen[channel]
	if !ok {
		seen = make(map[string]struct{})
		c.seen[channel] = seen
	}
	for _, tok := range tokens {
		nick := StripPrefix(tok)
		if nick == "" {
			continue
		}
		if _, dup := seen[nick]; dup {
			continue
		}
		seen[nick] = struct{}{}
		c.names[channel] = append(c.names[channel], nick)
	}
}

// OnNamesEnd finishes the accumulation for channel and returns one WHOIS item per nick, in the
// order the server listed them, skipping self. The accumulator is cleared. A terminator with
// no preceding lines yields nothing.
func (c *Correlator) OnNamesEnd(channel, self string) []WorkItem {
	nicks := c.names[channel]
	delete(c.names, channel)
	delete(c.seen, channel)

	var items []WorkItem
	for _, nick := range nicks {
		if nick == self {
			continue
		}
		items = append(items, WhoisItem(channel, nick))
	}
	return items
}

// PendingNames is the number of channels with an open NAMES accumulation.
func (c *Correlator) PendingNames() int { return len(c.names) }

// ExpectWhois records that a lookup for nick was sent on behalf of channel.
func (c *Correlator) ExpectWhois(nick, channel string) {
	for _, ch := range c.lookup[nick] {
		if ch == channel {
			return
		}
	}
	c.lookup[nick] = append(c.lookup[nick], channel)
}

// OnWhoisUser resolves a 311 user line. It returns the channels whose lookups were waiting on
// nick and clears them. Replies nobody asked for resolve to no channels.
func (c *Correlator) OnWhoisUser(fact UserFact) []string {
	channels := c.lookup[fact.Nick]
	delete(c.lookup, fact.Nick)
	return channels
}

// ForgetWhois abandons outstanding lookups for nick (end-of-whois or no-such-nick).
func (c *Correlator) ForgetWhois(nick string) {
	delete(c.lookup, nick)
}

// PendingWhois is the number of nicks with an outstanding lookup.
func (c *Correlator) PendingWhois() int { return len(c.lookup) }
