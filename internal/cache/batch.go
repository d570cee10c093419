package cache

import "fmt"

// Chunk splits items into consecutive slices of at most n elements.
func Chunk[T any](items []T, n int) ([][]T, error) {
	if n <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", n)
	}
	out := make([][]T, 0, (len(items)+n-1)/n)
	for start := 0; start < len(items); start += n {
		end := min(start+n, len(items))
		out = append(out, items[start:end:end])
	}
	return out, nil
}
