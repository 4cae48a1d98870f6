// Package bot contains the channel bot's control logic: membership tracking, reconciliation
// against the configured channel set, NAMES/WHOIS reply correlation, the deferred lookup queue
// and the auto-op policy.
//
// Everything here runs on a single goroutine. Controller.Run owns the state and multiplexes:
//   - gateway events (joins, parts, numerics, mode changes, connection lifecycle);
//   - control commands from the console, HTTP admin endpoints and the config watcher
//     (reload, update, disconnect, raw, status);
//   - an idle tick. Each tick drains at most one queued WHOIS lookup, so a large NAMES reply
//     turns into a slow trickle of lookups instead of a flood.
//
// Because every mutation happens on that goroutine there are no locks around the membership set,
// the NAMES accumulators or the work queue. Other goroutines talk to the controller through its
// exported methods, which only enqueue commands; IsConnected reads an atomic mirror of the state.
//
// The protocol itself is the Gateway's business (see package gateway). The controller only sees
// normalized irc.Event values and calls back into the Gateway for outbound actions.
package bot
