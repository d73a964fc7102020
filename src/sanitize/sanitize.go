// Package sanitize cleans raw CI log text stored by the backend so it can be shown
// in a terminal or returned from MCP tools.
//
// Logs are ingested verbatim, so they may carry colour codes and runner markers
// such as GitHub Actions "##[group]" lines or Buildkite timestamp escapes.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// SGR sequences: \x1b[...m
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	// Buildkite timestamp markers: \x1b_bk;t=...\x07
	buildkiteTimestamp = regexp.MustCompile(`\x1b_bk;t=[0-9]+\x07`)

	// GitHub Actions prefixes every line with an RFC 3339 timestamp when logs are
	// downloaded from the API: "2024-01-01T10:00:00.1234567Z ".
	actionsTimestamp = regexp.MustCompile(`(?m)^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z `)

	// Workflow commands that only structure the web log view.
	actionsGroup = regexp.MustCompile(`(?m)^##\[(group|endgroup)\].*$\n?`)
	// "##[error]msg" and "::error file=x::msg" keep their level as a plain prefix.
	actionsLevel   = regexp.MustCompile(`(?m)^##\[(error|warning|notice|debug)\]`)
	actionsCommand = regexp.MustCompile(`(?m)^::(error|warning|notice|debug)[^:]*::`)
)

// StripANSI removes ANSI escape codes and Buildkite timestamp markers.
func StripANSI(s string) string {
	s = buildkiteTimestamp.ReplaceAllString(s, "")
	return ansiPattern.ReplaceAllString(s, "")
}

// StripRunnerMarkers removes GitHub Actions timestamps and grouping commands and
// rewrites annotation commands as "error: ", "warning: " etc.
func StripRunnerMarkers(s string) string {
	s = actionsTimestamp.ReplaceAllString(s, "")
	s = actionsGroup.ReplaceAllString(s, "")
	s = actionsLevel.ReplaceAllString(s, "$1: ")
	return actionsCommand.ReplaceAllString(s, "$1: ")
}

// Clean applies every cleanup, normalizes line endings and trims the result.
func Clean(s string) string {
	s = StripANSI(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = StripRunnerMarkers(s)
	return strings.TrimSpace(s)
}
