package errors

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "event42", false},
		{"valid uuid", "3f2c1c1e-7a9b-4e1f-9a51-0d6d3c7f2b11", false},
		{"valid with dot and colon", "org.events:2025", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"path traversal", "a..b", true},
		{"slash", "a/b", true},
		{"backslash", "a\\b", true},
		{"leading dash", "-abc", true},
		{"space", "a b", true},
		{"newline", "a\nb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier("event", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePrefix(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty selects derived", "", false},
		{"dash terminated", "CERT-", false},
		{"dotted", "GC.2025.", false},
		{"underscore", "ev_", false},

		{"parent escape", "../ev-2/CERT-", true},
		{"slash", "CERT/", true},
		{"backslash", "CERT\\", true},
		{"dot dot", "A..", true},
		{"leading dot", ".CERT-", true},
		{"colon", "CERT:", true},
		{"space", "CERT ", true},
		{"too long", strings.Repeat("C", 33), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrefix(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePrefix(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ValidatePrefix(%q) code = %s, want INVALID_INPUT", tt.input, GetCode(err))
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid artifact key", "ev-1/CERT-000001.pdf", false},
		{"valid nested", "certificates/ev-1/CERT-000001.png", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 501), true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "ev-1/../../secret", true},
		{"backslash", "ev-1\\file", true},
		{"null byte", "ev-1\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAssetURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"https", "https://example.com/logo.png", false},
		{"http", "http://localhost:8080/logo.png", false},
		{"data", "data:image/png;base64,AAAA", false},
		{"file", "file:///tmp/logo.png", false},

		{"empty", "", true},
		{"ftp", "ftp://example.com/logo.png", true},
		{"relative", "logo.png", true},
		{"javascript", "javascript:alert(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAssetURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAssetURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
