// Package broadcast provides the two in-process fan-out primitives the store
// is built on.
//
// Broadcast is a hot multicast: subscribers receive only values emitted after
// they attached, synchronously, on the emitting goroutine, in attach order.
// One subscriber's panic never keeps a value from the others; it is raised
// again once every subscriber has been called.
//
// Latest is a latest-value stream: a subscriber is handed the current value
// on attach and then every subsequent change, in the order the changes were
// made. Deliveries are serialized, so callbacks must not call back into the
// same Latest.
package broadcast
