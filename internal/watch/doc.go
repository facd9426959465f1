// Package watch polls the version heartbeat and reports when the server
// has reindexed documents or reloaded its configuration.
//
// The heartbeat carries two counters, docsVersion and configVersion. The
// first successful poll only records them; every later poll that sees a
// different value emits a Change. Polls that return nothing are ignored,
// so an unreachable server never looks like a change.
package watch
