// Package services defines shared utilities consumed by the cache, the seeder
// and the control surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp request, run and batch identifiers for
//     logging correlation.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (transient, malformed, storage, validation) with errors.Is.
//
// Use these helpers when wiring new components so failure classification and
// observability stay uniform.
package services
