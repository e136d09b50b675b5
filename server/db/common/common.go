// Package common contains utility methods used by all adapters.
package common

import (
	"context"
	"sort"
	"time"
)

// Context returns a context which expires after the given timeout. Zero timeout
// means no deadline.
func Context(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

// SortedUnique sorts the slice in place and removes duplicate and empty values.
func SortedUnique(vals []string) []string {
	if len(vals) == 0 {
		return vals
	}
	sort.Strings(vals)
	out := vals[:0]
	for i, v := range vals {
		if v == "" || (i > 0 && v == vals[i-1]) {
			continue
		}
		out = append(out, v)
	}
	return out
}
