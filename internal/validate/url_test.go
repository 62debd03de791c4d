package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestURL(t *testing.T) {
	https := URLConstraints{AllowedSchemes: []string{"https"}}
	tests := []struct {
		name    string
		input   string
		c       URLConstraints
		wantErr error
	}{
		{"https", "https://spindrift.com/flavors", https, nil},
		{"whitespace trimmed", "  https://lacroixwater.com  ", https, nil},
		{"empty", " ", https, ErrEmpty},
		{"wrong scheme", "ftp://spindrift.com", https, ErrDisallowedScheme},
		{"javascript", "javascript:alert(1)", https, ErrDisallowedScheme},
		{"no host", "https:///path", https, ErrInvalidURL},
		{"credentials", "https://user:pw@spindrift.com", https, ErrInvalidURL},
		{"too long", "https://a.com/" + strings.Repeat("x", 40), URLConstraints{MaxLength: 20}, ErrStringTooLong},
		{"allowed subdomain", "https://shop.bubly.com", URLConstraints{AllowedDomains: []string{"bubly.com"}}, nil},
		{"lookalike domain", "https://notbubly.com", URLConstraints{AllowedDomains: []string{"bubly.com"}}, ErrDisallowedDomain},
		{"private allowed when not blocked", "http://10.0.0.5", URLConstraints{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := URL(tt.input, tt.c)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("URL(%q) error = %v", tt.input, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("URL(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestWebsiteURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"https://www.topochico.com", false},
		{"http://polarbeverages.com/seltzer", false},
		{"http://localhost:8080", true},
		{"http://api.localhost", true},
		{"http://printer.local", true},
		{"http://metadata.internal", true},
		{"http://127.0.0.1", true},
		{"http://192.168.1.10", true},
		{"http://172.20.0.1", true},
		{"http://169.254.169.254/latest/meta-data", true},
		{"http://0.0.0.0", true},
		{"http://[::1]", true},
		{"http://[fd00::1]", true},
		{"http://[::ffff:10.0.0.1]", true},
		{"http://8.8.8.8", false},
		{"mailto:hello@spindrift.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := WebsiteURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("WebsiteURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSiteBaseURL(t *testing.T) {
	tests := []struct {
		input, want string
		wantErr     bool
	}{
		{"https://fizzrank.example/", "https://fizzrank.example", false},
		{"http://localhost:8080//", "http://localhost:8080", false},
		{"fizzrank.example", "", true},
	}
	for _, tt := range tests {
		got, err := SiteBaseURL(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("SiteBaseURL(%q) = %q, %v; want %q, err=%v", tt.input, got, err, tt.want, tt.wantErr)
		}
	}
}
