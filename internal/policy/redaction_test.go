package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{
			name:    "clean text untouched",
			in:      "I'm not interested, thanks",
			want:    "I'm not interested, thanks",
			changed: false,
		},
		{
			name:    "phone number",
			in:      "call me back at +1 555-010-9988 tomorrow",
			want:    "call me back at [REDACTED_PHONE] tomorrow",
			changed: true,
		},
		{
			name:    "email",
			in:      "send it to sam.lee@example.com please",
			want:    "send it to [REDACTED_EMAIL] please",
			changed: true,
		},
		{
			name:    "card number not treated as phone",
			in:      "my card is 4111 1111 1111 1111",
			changed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := RedactPII(tt.in)
			if changed != tt.changed {
				t.Fatalf("changed = %v, want %v", changed, tt.changed)
			}
			if tt.want != "" && got != tt.want {
				t.Fatalf("RedactPII() = %q, want %q", got, tt.want)
			}
			if tt.name == "card number not treated as phone" && !strings.Contains(got, "[REDACTED_CARD]") {
				t.Fatalf("card not redacted: %q", got)
			}
		})
	}
}
