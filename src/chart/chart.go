// Package chart aggregates log entries into per-day counts and renders them as bars.
package chart

import (
	"fmt"
	"sort"
	"strings"

	"copilot-dash/src/contracts"
)

// DateLayout is the label format of one bucket.
const DateLayout = "2006-01-02"

// Series is a list of date buckets in ascending order.
type Series struct {
	Labels []string
	Counts []int
}

// Empty reports whether the series has no buckets.
func (s Series) Empty() bool { return len(s.Labels) == 0 }

// Total returns the sum of all counts.
func (s Series) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Max returns the largest count, or 0 for an empty series.
func (s Series) Max() int {
	m := 0
	for _, c := range s.Counts {
		if c > m {
			m = c
		}
	}
	return m
}

// Aggregate counts entries per calendar date. Each timestamp is bucketed in its
// own location. Entries without a timestamp are skipped.
func Aggregate(entries []contracts.LogEntry) Series {
	counts := make(map[string]int)
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			continue
		}
		counts[e.Timestamp.Date()]++
	}

	labels := make([]string, 0, len(counts))
	for d := range counts {
		labels = append(labels, d)
	}
	// Zero-padded dates sort lexically in calendar order.
	sort.Strings(labels)

	s := Series{Labels: labels, Counts: make([]int, len(labels))}
	for i, d := range labels {
		s.Counts[i] = counts[d]
	}
	return s
}

// Bars renders one line per bucket: "2024-01-01 ████ 2". Bar lengths are scaled so
// the largest bucket spans width cells; any non-zero bucket gets at least one cell.
func Bars(s Series, width int) string {
	if s.Empty() {
		return ""
	}
	if width < 1 {
		width = 1
	}
	peak := s.Max()
	digits := len(fmt.Sprint(peak))

	var b strings.Builder
	for i, label := range s.Labels {
		if i > 0 {
			b.WriteByte('\n')
		}
		n := 0
		if peak > 0 {
			n = s.Counts[i] * width / peak
			if n == 0 && s.Counts[i] > 0 {
				n = 1
			}
		}
		fmt.Fprintf(&b, "%s %s%s %*d", label, strings.Repeat("█", n), strings.Repeat(" ", width-n), digits, s.Counts[i])
	}
	return b.String()
}
