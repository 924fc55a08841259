// Package device provides the DOSA peer registry: the in-memory
// catalogue of devices seen on the multicast group, keyed by address,
// with liveness tracking driven by PONG replies and a timeout sweep.
//
// Identity is the peer's (IP, port); a device that changes port is a
// new entry, never a rename of the old one.
package device
