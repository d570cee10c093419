package pathquery

import (
	"fmt"
	"regexp"
	"strings"

	"titlecache/internal/textutil"
)

// Combinator joins predicates.
type Combinator int

const (
	// All requires every predicate to match (AND).
	All Combinator = iota
	// Any requires at least one predicate to match (OR).
	Any
)

func (c Combinator) keyword() string {
	if c == Any {
		return " OR "
	}
	return " AND "
}

func (c Combinator) String() string {
	if c == Any {
		return "any"
	}
	return "all"
}

// Predicate pairs a path expression with a value.
type Predicate struct {
	Path  string
	Value Value
}

// Where builds a predicate from a loosely typed value, see ValueOf.
func Where(path string, value any) Predicate {
	return Predicate{Path: path, Value: ValueOf(value)}
}

// Fragment is a SQL boolean expression with its positional arguments.
type Fragment struct {
	SQL  string
	Args []any
}

// Empty reports whether the fragment contributes nothing.
func (f Fragment) Empty() bool { return strings.TrimSpace(f.SQL) == "" }

const matchNothing = "(1 = 0)"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Target names the table and JSON column predicates run against.
type Target struct {
	Table  string
	Column string
}

func (t Target) column() (string, error) {
	if !identifierPattern.MatchString(t.Table) || !identifierPattern.MatchString(t.Column) {
		return "", fmt.Errorf("pathquery: invalid target %q.%q", t.Table, t.Column)
	}
	return t.Table + "." + t.Column, nil
}

// Compile turns a predicate into a WHERE fragment. Skip values yield an
// empty fragment and invalid values yield one that matches no rows. A path
// that cannot be parsed is an error regardless of the value.
func (t Target) Compile(p Predicate) (Fragment, error) {
	col, err := t.column()
	if err != nil {
		return Fragment{}, err
	}
	path, err := Parse(p.Path)
	if err != nil {
		return Fragment{}, err
	}
	switch p.Value.kind {
	case KindSkip:
		return Fragment{}, nil
	case KindSubstring, KindEquals, KindRange:
	default:
		return Fragment{SQL: matchNothing}, nil
	}

	outer, inner := path.split()
	if !path.HasWildcard() {
		cmp, cmpArgs := comparison("json_extract("+col+", ?)", p.Value)
		return Fragment{SQL: cmp, Args: append([]any{outer}, cmpArgs...)}, nil
	}

	// json_each also walks a scalar as a single row, so the array check
	// keeps "genres": "Comedy" from matching genres[*].
	args := []any{outer, outer}
	expr := "elem.value"
	if inner != "" {
		expr = elementExtract
		args = append(args, inner)
	}
	cmp, cmpArgs := comparison(expr, p.Value)
	args = append(args, cmpArgs...)
	sql := "(" + isArray(col) + " AND EXISTS (SELECT 1 FROM json_each(" + col + ", ?) AS elem WHERE " + cmp + "))"
	return Fragment{SQL: sql, Args: args}, nil
}

// elementExtract reads a key from an array element, yielding NULL for
// elements that are not objects instead of a malformed JSON error.
const elementExtract = "CASE WHEN elem.type = 'object' THEN json_extract(elem.value, ?) END"

// FoldFunc names the SQL function substring matches fold both sides with.
// The store registers it; SQLite's own LIKE only folds ASCII.
const FoldFunc = "casefold"

func isArray(col string) string {
	return "json_type(" + col + ", ?) = 'array'"
}

func comparison(expr string, v Value) (string, []any) {
	switch v.kind {
	case KindSubstring:
		return foldLike(expr), []any{likePattern(textutil.Fold(v.text))}
	case KindEquals:
		return expr + " = ?", []any{v.lo}
	default:
		return expr + " BETWEEN ? AND ?", []any{v.lo, v.hi}
	}
}

// CompileAll compiles predicates and joins them with the combinator.
func (t Target) CompileAll(c Combinator, preds ...Predicate) (Fragment, error) {
	frags := make([]Fragment, 0, len(preds))
	for _, p := range preds {
		frag, err := t.Compile(p)
		if err != nil {
			return Fragment{}, err
		}
		frags = append(frags, frag)
	}
	return Join(c, frags...), nil
}

// Join combines non-empty fragments into one parenthesised expression.
// It returns an empty fragment when nothing remains.
func Join(c Combinator, frags ...Fragment) Fragment {
	parts := make([]string, 0, len(frags))
	var args []any
	for _, f := range frags {
		if f.Empty() {
			continue
		}
		parts = append(parts, f.SQL)
		args = append(args, f.Args...)
	}
	if len(parts) == 0 {
		return Fragment{}
	}
	return Fragment{SQL: "(" + strings.Join(parts, c.keyword()) + ")", Args: args}
}

// ValueSource compiles the SELECT producing one row per value at path, in a
// column named v. Wildcard paths expand the array so each element is a row.
func (t Target) ValueSource(rawPath string) (Fragment, error) {
	col, err := t.column()
	if err != nil {
		return Fragment{}, err
	}
	path, err := Parse(rawPath)
	if err != nil {
		return Fragment{}, err
	}
	outer, inner := path.split()
	if !path.HasWildcard() {
		return Fragment{
			SQL:  "SELECT json_extract(" + col + ", ?) AS v FROM " + t.Table,
			Args: []any{outer},
		}, nil
	}
	from := " FROM " + t.Table + ", json_each(" + col + ", ?) AS elem WHERE " + isArray(col)
	if inner == "" {
		return Fragment{
			SQL:  "SELECT elem.value AS v" + from,
			Args: []any{outer, outer},
		}, nil
	}
	return Fragment{
		SQL:  "SELECT " + elementExtract + " AS v" + from,
		Args: []any{inner, outer, outer},
	}, nil
}

// ContainsFilter compiles a case-insensitive substring test against expr.
// An empty needle matches every value.
func ContainsFilter(expr, needle string) Fragment {
	return Fragment{SQL: foldLike(expr), Args: []any{likePattern(textutil.Fold(needle))}}
}

func foldLike(expr string) string {
	return FoldFunc + "(" + expr + `) LIKE ? ESCAPE '\'`
}
