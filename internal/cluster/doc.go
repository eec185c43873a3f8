// Package cluster routes task invocations to worker members. It discovers
// members (statically or through Redis), keeps the ones tagged with the
// routing role, and delivers each call to the next member in round-robin
// order over TCP or vsock.
package cluster
