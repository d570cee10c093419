// Package seeder walks the bulk dataset catalogue and pushes every candidate
// title through the cache so the store fills up without waiting for queries.
//
// Only one seeder may run against a data directory at a time; the lock file
// lives next to the database. Each cycle carries a run id that appears on
// every log line it produces.
package seeder
