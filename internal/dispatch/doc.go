// Package dispatch provides the fan-out/fan-in engine that turns one work
// request into N independent remote calls and reassembles their outcomes.
//
// A Dispatcher issues one Channel invocation per task, each with its own
// deadline. An Aggregator awaits every resulting Future concurrently and
// writes each outcome into the response slot matching its task index, so the
// final status list is in task order no matter which call settles first.
// Per-task failures (routing, remote error, timeout) are rendered as status
// strings and never abort the request.
package dispatch
