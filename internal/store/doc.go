// Package store persists title payloads in SQLite.
//
// Each row holds one title: its id, the JSON document returned by the remote
// service, and the time it was last refreshed. Payloads are never decoded
// here; queries reach into them with SQLite's JSON functions through
// pathquery fragments. The only mutation is a batch upsert that commits or
// rolls back as a unit and never moves a row's timestamp backwards.
package store
