// Package worker implements the worker node side of the cluster: it accepts
// connections from the router, reads one task record per connection, runs it
// through an Executor and writes back one result record.
package worker
