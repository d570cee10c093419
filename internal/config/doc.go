// Package config loads, normalizes, and validates titlecache configuration.
//
// Configuration lives in a TOML file (by default
// ~/.config/titlecache/config.toml). Load layers the file over Default,
// expands ~ in path fields, applies environment fallbacks such as
// TITLECACHE_API_TOKEN, and rejects values the cache cannot run with.
// CreateSample writes the embedded sample file for `titlecache config init`.
package config
