package mcp

import (
	"fmt"
	"regexp"
	"strings"

	"copilot-dash/src/contracts"
	"copilot-dash/src/sanitize"
)

// Context line limits per tier.
// Errors get more context for root cause analysis than warnings.
const (
	Tier1PreContext  = 5
	Tier1PostContext = 10

	Tier2PreContext  = 3
	Tier2PostContext = 5
)

// Default finding limits per tier.
const (
	DefaultTier1Limit = 15
	DefaultTier2Limit = 5
)

var (
	errorPattern   = regexp.MustCompile(`(?i)\b(errors?|fail|failed|failure|fatal|panic|exception|traceback|denied|timeout|timed out)\b|ERR!`)
	warningPattern = regexp.MustCompile(`(?i)\b(warn|warning|deprecated|retry|retrying)\b`)
)

// classifyLine returns 1 for error lines, 2 for warnings and 3 for the rest.
func classifyLine(line string) int {
	switch {
	case errorPattern.MatchString(line):
		return 1
	case warningPattern.MatchString(line):
		return 2
	}
	return 3
}

func getContextLimits(tier int) (pre, post int) {
	if tier == 1 {
		return Tier1PreContext, Tier1PostContext
	}
	return Tier2PreContext, Tier2PostContext
}

// logLine is one compressed, non-blank line of an entry.
type logLine struct {
	entry contracts.LogEntry
	index int
	text  string
}

func splitEntries(entries []contracts.LogEntry) []logLine {
	var lines []logLine
	for _, e := range entries {
		for i, raw := range strings.Split(sanitize.Clean(e.Content), "\n") {
			if text := CompressLine(raw); text != "" {
				lines = append(lines, logLine{entry: e, index: i, text: text})
			}
		}
	}
	return lines
}

// contextAround returns up to pre lines before and post lines after lines[i],
// staying inside the same log entry.
func contextAround(lines []logLine, i, pre, post int) (before, after []string) {
	id := lines[i].entry.ID
	for j := i - 1; j >= 0 && j >= i-pre && lines[j].entry.ID == id; j-- {
		before = append([]string{lines[j].text}, before...)
	}
	for j := i + 1; j < len(lines) && j <= i+post && lines[j].entry.ID == id; j++ {
		after = append(after, lines[j].text)
	}
	return before, after
}

// TierLogs digests log entries for an LLM. Error and warning lines become
// findings with surrounding context, deduplicated case-insensitively in order of
// first appearance; everything else is only counted. limit caps the error tier
// (values <= 0 use the default); the warning tier is scaled down from it.
func TierLogs(pipelineID string, entries []contracts.LogEntry, limit int) Digest {
	tier1Limit := DefaultTier1Limit
	tier2Limit := DefaultTier2Limit
	if limit > 0 && limit != DefaultTier1Limit {
		tier1Limit = limit
		tier2Limit = max(1, limit/3)
	}

	lines := splitEntries(entries)
	d := Digest{
		PipelineID: pipelineID,
		Entries:    len(entries),
		Lines:      len(lines),
		Errors:     []Finding{},
		Warnings:   []Finding{},
	}

	type slot struct{ tier, idx int }
	seen := make(map[string]slot)

	for i, l := range lines {
		tier := classifyLine(l.text)
		if tier == 3 {
			d.NoiseLines++
			continue
		}

		key := strings.ToLower(l.text)
		if s, ok := seen[key]; ok {
			if s.idx >= 0 {
				if s.tier == 1 {
					d.Errors[s.idx].Recurrence++
				} else {
					d.Warnings[s.idx].Recurrence++
				}
			}
			continue
		}

		target, room := &d.Errors, tier1Limit
		if tier == 2 {
			target, room = &d.Warnings, tier2Limit
		}
		if len(*target) >= room {
			seen[key] = slot{tier: tier, idx: -1}
			d.Omitted++
			continue
		}

		pre, post := getContextLimits(tier)
		before, after := contextAround(lines, i, pre, post)
		seen[key] = slot{tier: tier, idx: len(*target)}
		*target = append(*target, Finding{
			ID:          fmt.Sprintf("%d:%d", l.entry.ID, l.index),
			Tier:        tier,
			Line:        l.text,
			Recurrence:  1,
			FirstSeen:   l.entry.Timestamp.Display(),
			PreContext:  before,
			PostContext: after,
		})
	}
	return d
}
