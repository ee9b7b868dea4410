package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"two@at@signs", "***@***"},
	}

	for _, tt := range tests {
		if got := RedactEmail(tt.in); got != tt.want {
			t.Errorf("RedactEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
		{"", INFO},
		{"bogus", INFO},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRedactValueByKey(t *testing.T) {
	if got := redactValue("recipient", "john.doe@example.com"); got != "jo***@example.com" {
		t.Errorf("redactValue(recipient) = %q", got)
	}
	// Embedded addresses in generic fields are still masked.
	if got := redactValue("error", "smtp: 550 user john.doe@example.com unknown"); got == "smtp: 550 user john.doe@example.com unknown" {
		t.Error("embedded email not redacted")
	}
}
