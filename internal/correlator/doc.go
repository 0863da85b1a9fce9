// Package correlator joins enriched-call content with voice calls.
//
// Content and calls arrive independently and in either order. When content
// arrives first it waits in the pending set until a call with the same
// normalized number shows up. When the call is already known the content
// is attached to it straight away.
//
// SINGLE WRITER:
//
// A Correlator is not safe for concurrent use. Every operation must run on
// the router's dispatch goroutine; producers on other goroutines post
// events to the router instead of calling in here.
//
// MATCHING:
//
//   - Numbers are compared by exact equality of their normalized forms.
//   - The pending set is scanned in arrival order and the first match wins.
//   - Attaching overwrites whatever content the call already carried.
//   - A missing match is never an error. Empty numbers are ignored.
package correlator
