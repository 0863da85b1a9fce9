// Package router serializes every inbound event onto one goroutine.
//
// Call arrivals, pushed content, state updates, and service-connected
// notifications come from different host threads. Producers call Post; a
// single Run loop dequeues in FIFO order and hands each event to the
// correlator, which is therefore never touched concurrently.
//
// Each event is stamped at dispatch with a seq number from a logical Clock
// and a flow token. Seq order equals dispatch order, so a journal written by
// the loop can be read back in the order things actually happened.
//
// Processing failures (a journal write error, an event missing its
// payload) are logged and the loop moves on to the next event.
package router
