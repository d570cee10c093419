package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"titlecache/internal/cache"
	"titlecache/internal/pathquery"
	"titlecache/internal/textutil"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "add <id>...",
		Short: "Fetch titles that are missing or stale",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(false, func(s *session) error {
				result, err := s.manager.Add(cmd.Context(), args...)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"Requested", "Fresh", "Stored", "Filtered", "Missing", "Failed batches"},
					[][]string{{
						strconv.Itoa(result.Requested),
						strconv.Itoa(result.Fresh),
						strconv.Itoa(result.Stored),
						strconv.Itoa(result.Filtered),
						strconv.Itoa(result.Missing),
						strconv.Itoa(len(result.Failures)),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				for _, failure := range result.Failures {
					printStatus(out, false, "batch %d (%s): %s", failure.Batch, strings.Join(failure.IDs, ", "), failure.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newQueryCommand(ctx *commandContext) *cobra.Command {
	var (
		where  []string
		union  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List cached titles matching path predicates",
		Long: `List cached titles matching path predicates.

Each --where takes path=value. Paths are dot separated and may mark one
array with [*], for example genres[*] or originCountries[*].name. Values
of the form lo..hi match an inclusive range, numbers match exactly and
anything else is a case-insensitive substring.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			preds := make([]pathquery.Predicate, 0, len(where))
			for _, expr := range where {
				pred, err := parseWhere(expr)
				if err != nil {
					return err
				}
				preds = append(preds, pred)
			}
			comb := pathquery.All
			if union {
				comb = pathquery.Any
			}
			return ctx.withSession(false, func(s *session) error {
				titles, err := s.manager.Query(cmd.Context(), comb, preds...)
				if err != nil {
					return err
				}
				if asJSON {
					if titles == nil {
						titles = []cache.Title{}
					}
					return writeJSON(cmd, titles)
				}
				out := cmd.OutOrStdout()
				if len(titles) == 0 {
					fmt.Fprintln(out, "No matching titles")
					return nil
				}
				rows := make([][]string, 0, len(titles))
				for _, title := range titles {
					rows = append(rows, titleRow(title))
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Year", "Type", "Rating"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				))
				fmt.Fprintf(out, "%d titles\n", len(titles))
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Predicate as path=value (repeatable)")
	cmd.Flags().BoolVar(&union, "union", false, "Match any predicate instead of all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matching documents as JSON")
	return cmd
}

func titleRow(title cache.Title) []string {
	rating := ""
	if r, ok := title["rating"].(map[string]any); ok {
		rating = formatField(r["aggregateRating"])
	}
	return []string{
		formatField(title["id"]),
		formatField(title["primaryTitle"]),
		formatField(title["startYear"]),
		formatField(title["type"]),
		rating,
	}
}

func formatField(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func newCountCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of cached titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(false, func(s *session) error {
				n, err := s.manager.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newAutocompleteCommand(ctx *commandContext) *cobra.Command {
	var (
		limit int
		strip bool
	)

	cmd := &cobra.Command{
		Use:   "autocomplete <path> [query]",
		Short: "Suggest distinct values found at a path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 2 {
				query = args[1]
			}
			var post func(string) string
			if strip {
				post = textutil.StripParenthetical
			}
			return ctx.withSession(false, func(s *session) error {
				values, err := s.manager.Autocomplete(cmd.Context(), query, args[0], limit, post)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, v := range values {
					fmt.Fprintln(out, v)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", cache.DefaultSuggestions, "Maximum number of suggestions")
	cmd.Flags().BoolVar(&strip, "strip-parenthetical", false, `Drop trailing "(...)" qualifiers before deduplicating`)
	return cmd
}

func newSnapshotCommand(ctx *commandContext) *cobra.Command {
	var (
		facetName string
		query     string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build facet suggestions from the cache and print their sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var facet cache.Facet
			if facetName != "" {
				f, err := cache.ParseFacet(facetName)
				if err != nil {
					return err
				}
				facet = f
			}
			return ctx.withSession(false, func(s *session) error {
				diff, err := s.manager.Reload(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if facet != "" {
					for _, v := range s.manager.Snapshot().Suggest(facet, query, limit) {
						fmt.Fprintln(out, v)
					}
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Facet", "Values"},
					[][]string{
						{"Entries", strconv.Itoa(diff.Entries.After)},
						{"Titles", strconv.Itoa(diff.Titles.After)},
						{"Genres", strconv.Itoa(diff.Genres.After)},
						{"Countries", strconv.Itoa(diff.Countries.After)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&facetName, "facet", "", "Print suggestions from one facet (titles, genres, countries)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter suggestions by substring")
	cmd.Flags().IntVarP(&limit, "limit", "n", cache.DefaultSuggestions, "Maximum number of suggestions")
	return cmd
}
