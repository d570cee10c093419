package datasets

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// nullField is how the TSV exports spell a missing value.
const nullField = `\N`

const maxLineBytes = 1 << 20

// CandidateIDs returns the sorted ids of titles in dir whose type is one of
// titleTypes and that have a ratings row. An empty titleTypes keeps every
// type.
func CandidateIDs(ctx context.Context, dir string, titleTypes []string) ([]string, error) {
	wanted := make(map[string]bool, len(titleTypes))
	for _, t := range titleTypes {
		wanted[t] = true
	}

	typed := make(map[string]struct{})
	err := scanTSV(ctx, filepath.Join(dir, TitleBasics), []string{"tconst", "titleType"}, func(fields []string) {
		id, kind := fields[0], fields[1]
		if id == nullField {
			return
		}
		if len(wanted) > 0 && !wanted[kind] {
			return
		}
		typed[id] = struct{}{}
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	err = scanTSV(ctx, filepath.Join(dir, TitleRatings), []string{"tconst"}, func(fields []string) {
		if _, ok := typed[fields[0]]; ok {
			ids = append(ids, fields[0])
			delete(typed, fields[0])
		}
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// scanTSV streams a gzip TSV file and calls fn with the requested columns of
// every data row. Columns are located by the header row.
func scanTSV(ctx context.Context, path string, columns []string, fn func([]string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	return readTSV(ctx, zr, filepath.Base(path), columns, fn)
}

func readTSV(ctx context.Context, r io.Reader, name string, columns []string, fn func([]string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read %s header: %w", name, err)
		}
		return fmt.Errorf("%s: empty file", name)
	}
	header := strings.Split(scanner.Text(), "\t")
	index := make([]int, len(columns))
	for i, col := range columns {
		index[i] = slices.Index(header, col)
		if index[i] < 0 {
			return fmt.Errorf("%s: missing column %q", name, col)
		}
	}
	width := slices.Max(index) + 1

	out := make([]string, len(columns))
	for line := 2; scanner.Scan(); line++ {
		if line%100_000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fields := strings.SplitN(scanner.Text(), "\t", width+1)
		if len(fields) < width {
			continue
		}
		for i, idx := range index {
			out[i] = fields[idx]
		}
		fn(out)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return ctx.Err()
}
