// Package forge compiles declarative agent descriptions into executable
// workflow graphs and runs them with real-time progress streaming.
//
// An agent description is a JSON document listing nodes (processing steps
// with a capability, an objective and model parameters) and directed edges
// between them, with the sentinels START and END marking the entry and exit
// of the workflow. The config package parses and validates descriptions,
// the graph package compiles them into an immutable DAG with a topological
// layering, the step package provides the capability executors, and the run
// package schedules a compiled graph layer by layer, merging each step's
// partial state update into the shared execution state and publishing
// progress events through the stream package.
//
// The server package exposes the whole pipeline over HTTP with server-sent
// event streaming, and the store package persists agents across restarts.
package forge
