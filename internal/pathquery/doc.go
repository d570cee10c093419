// Package pathquery compiles path predicates over JSON payloads into SQLite
// WHERE fragments.
//
// A path is a dotted list of object keys. One key may carry a [*] suffix,
// which marks it as an array whose elements are tested existentially:
//
//	rating.aggregateRating        scalar lookup
//	genres[*]                     any element of genres
//	originCountries[*].name       name of any element of originCountries
//
// A wildcard key only matches when the value there is a JSON array.
//
// Values are typed. A string matches as a case-insensitive substring, with
// Unicode folding done by the FoldFunc SQL function. A number matches
// exactly, and a two-element numeric pair matches an inclusive range. Values of any other shape compile to a predicate that matches
// nothing. Every path and value reaches SQLite as a bound parameter.
package pathquery
