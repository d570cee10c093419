// Package datasets keeps local copies of the bulk IMDb TSV snapshots fresh
// and extracts seed candidates from them.
//
// Downloads go through the fetcher retry client into a temporary file in the
// datasets directory and are renamed into place only once complete, so a
// reader never sees a truncated archive. CandidateIDs streams the gzip files
// row by row instead of loading them whole.
package datasets
