package mcp

import (
	"fmt"
	"regexp"
	"strings"

	"copilot-dash/src/sanitize"
)

// timestampPattern matches leading timestamps such as
// 2024-05-21T10:00:05.123Z, 2024-05-21 10:00:05,123 and 2024-05-21T10:00:05+00:00.
var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[.,]?\d*[Z]?([+-]\d{2}:?\d{2})?\s*`)

// stripTimestamps drops a timestamp at the start of line.
func stripTimestamps(line string) string {
	return timestampPattern.ReplaceAllString(line, "")
}

// hashPattern matches hex strings of 12+ characters (container IDs, git SHAs).
var hashPattern = regexp.MustCompile(`\b[a-f0-9]{12,}\b`)

// maskHashes replaces long hex ids with <HASH>.
func maskHashes(line string) string {
	return hashPattern.ReplaceAllString(line, "<HASH>")
}

// longPathPattern matches absolute paths with 3+ directories and captures the
// file name with its optional line number.
var longPathPattern = regexp.MustCompile(`/(?:[^/\s]+/){3,}([^/\s:]+(?::\d+)?)`)

// compressPath keeps only the file name of deep absolute paths.
func compressPath(line string) string {
	return longPathPattern.ReplaceAllString(line, ".../$1")
}

// minPrefixLength is the shortest shared prefix worth replacing with "...".
const minPrefixLength = 20

// findCommonPrefix returns the longest prefix shared by every line, or "" when
// there are fewer than two lines or the prefix is shorter than minPrefixLength.
func findCommonPrefix(lines []string) string {
	if len(lines) < 2 {
		return ""
	}

	prefix := lines[0]
	for _, line := range lines[1:] {
		for len(prefix) > 0 && !strings.HasPrefix(line, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
		if prefix == "" {
			break
		}
	}

	if len(prefix) < minPrefixLength {
		return ""
	}
	// A prefix that is a whole line would erase it.
	for _, line := range lines {
		if len(line) == len(prefix) {
			return ""
		}
	}
	return prefix
}

// removeCommonPrefix replaces the prefix found by findCommonPrefix with "... ".
func removeCommonPrefix(lines []string) []string {
	prefix := findCommonPrefix(lines)
	if prefix == "" {
		return lines
	}

	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = "... " + line[len(prefix):]
	}
	return result
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// normalizeWhitespace collapses runs of whitespace and trims the ends.
func normalizeWhitespace(line string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
}

// CompressLine reduces one log line to its informative part: the leading
// timestamp goes, hashes and long paths are shortened, whitespace is collapsed.
func CompressLine(line string) string {
	return normalizeWhitespace(compressPath(maskHashes(stripTimestamps(line))))
}

// CompressLines compresses each line, drops blank ones and folds a long shared
// prefix into "...".
func CompressLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if c := CompressLine(line); c != "" {
			out = append(out, c)
		}
	}
	return removeCommonPrefix(out)
}

// CompactLog sanitizes raw log content and compresses it for an LLM. Runs of an
// identical line collapse into one line with a repeat count.
func CompactLog(content string) string {
	lines := CompressLines(strings.Split(sanitize.Clean(content), "\n"))

	var out []string
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		if n := j - i; n > 1 {
			out = append(out, fmt.Sprintf("%s (x%d)", lines[i], n))
		} else {
			out = append(out, lines[i])
		}
		i = j
	}
	return strings.Join(out, "\n")
}
