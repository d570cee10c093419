// Package main hosts the titlecache CLI.
//
// Each invocation loads the configuration once, opens the SQLite store
// directly and drives the cache in-process; serve additionally exposes the
// control API and can run the seeder alongside it. One-shot commands log to
// the log file only so their stdout stays parseable.
package main
