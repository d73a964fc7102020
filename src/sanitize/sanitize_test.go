package sanitize

import "testing"

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "color codes",
			input:    "\x1b[31mERROR\x1b[0m: something failed",
			expected: "ERROR: something failed",
		},
		{
			name:     "no ANSI",
			input:    "plain text message",
			expected: "plain text message",
		},
		{
			name:     "multiple codes",
			input:    "\x1b[1m\x1b[31mbold red\x1b[0m normal",
			expected: "bold red normal",
		},
		{
			name:     "buildkite timestamp marker",
			input:    "\x1b_bk;t=1765886936038\x07[ERROR] message",
			expected: "[ERROR] message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripANSI(tt.input)
			if result != tt.expected {
				t.Errorf("StripANSI(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStripRunnerMarkers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "actions timestamps",
			input:    "2024-01-01T10:00:00.1234567Z npm ci\n2024-01-01T10:00:05Z npm run build",
			expected: "npm ci\nnpm run build",
		},
		{
			name:     "groups removed",
			input:    "##[group]Run actions/checkout@v4\nwith: repo\n##[endgroup]\nnext step",
			expected: "with: repo\nnext step",
		},
		{
			name:     "level markers",
			input:    "##[error]Process completed with exit code 2.",
			expected: "error: Process completed with exit code 2.",
		},
		{
			name:     "annotation commands",
			input:    "::warning file=app.js,line=1::Deprecated API",
			expected: "warning: Deprecated API",
		},
		{
			name:     "timestamps in content kept",
			input:    "[2024-01-01T10:00:00] Checkout code",
			expected: "[2024-01-01T10:00:00] Checkout code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripRunnerMarkers(tt.input)
			if result != tt.expected {
				t.Errorf("StripRunnerMarkers(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "full cleanup",
			input:    "\x1b_bk;t=123\x07\x1b[31mERROR\x1b[0m: message\r\n",
			expected: "ERROR: message",
		},
		{
			name:     "carriage returns",
			input:    "line1\r\nline2\r",
			expected: "line1\nline2",
		},
		{
			name:     "actions log with colour",
			input:    "2024-01-01T10:00:00Z \x1b[36m##[group]\x1b[0mRun tests\r\n2024-01-01T10:00:09Z ##[error]2 failed",
			expected: "error: 2 failed",
		},
		{
			name:     "already clean",
			input:    "clean message",
			expected: "clean message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Clean(tt.input)
			if result != tt.expected {
				t.Errorf("Clean(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}
