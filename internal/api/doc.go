// Package api serves the bearer-authenticated HTTP control surface for a
// running cache: status, refresh, path queries, autocomplete and snapshot
// reloads.
//
// # Routes
//
//	GET  /api/status            cache statistics
//	POST /api/titles            {"ids": [...]} refresh ids, returns the add summary
//	GET  /api/titles/{id}       one cached document, 404 when absent
//	POST /api/query             {"predicates": [{"path", "value"}], "union": bool}
//	GET  /api/autocomplete      ?path=&q=&n=&normalize=parenthetical
//	POST /api/snapshot/reload   rebuild facet suggestions
//
// # Design Notes
//
// Every request carries a correlation id, taken from X-Request-ID or
// generated, which is echoed in the response header and stamped on log lines.
// Errors are classified through the services markers: validation maps to 400,
// uncached ids to 404, remote failures to 502 and everything else to 500. A
// request whose context was cancelled answers 499 and one that ran out of time
// answers 503; neither is logged as a server error. Timestamps use RFC3339
// with milliseconds.
package api
