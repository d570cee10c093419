// Package textutil provides small string normalizers shared by the cache,
// the control API and the CLI.
//
// The primary use cases are:
//   - Cleaning identifier lists before they are batched
//   - Unicode-aware case folding for suggestion matching
//   - Trimming display decorations such as "Germany (West)" to "Germany"
package textutil
