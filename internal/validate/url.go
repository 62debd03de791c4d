package validate

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"slices"
	"strings"
)

// URL validation errors.
var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrDisallowedDomain = errors.New("URL domain not allowed")
	ErrPrivateHost      = errors.New("URL points at a private host")
)

// URLConstraints restricts which URLs URL accepts.
type URLConstraints struct {
	AllowedSchemes []string
	// AllowedDomains, when set, limits hosts to these domains and their
	// subdomains.
	AllowedDomains []string
	// BlockPrivate rejects loopback, private and link-local literal
	// addresses as well as local-only host names.
	BlockPrivate bool
	MaxLength    int
}

// PublicWebURLConstraints accepts http and https URLs on public hosts.
var PublicWebURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

var localSuffixes = []string{".localhost", ".local", ".internal"}

// URL trims s and checks it against c, returning the trimmed URL.
func URL(s string, c URLConstraints) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmpty
	}
	if c.MaxLength > 0 && len(s) > c.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, c.MaxLength)
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if len(c.AllowedSchemes) > 0 && !slices.Contains(c.AllowedSchemes, u.Scheme) {
		return "", fmt.Errorf("%w: %q", ErrDisallowedScheme, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: credentials in URL", ErrInvalidURL)
	}

	if len(c.AllowedDomains) > 0 && !slices.ContainsFunc(c.AllowedDomains, func(d string) bool {
		return host == d || strings.HasSuffix(host, "."+d)
	}) {
		return "", fmt.Errorf("%w: %q", ErrDisallowedDomain, host)
	}
	if c.BlockPrivate && isPrivateHost(host) {
		return "", fmt.Errorf("%w: %q", ErrPrivateHost, host)
	}
	return s, nil
}

func isPrivateHost(host string) bool {
	if host == "localhost" {
		return true
	}
	for _, suffix := range localSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
}

// WebsiteURL validates a brand's public website.
func WebsiteURL(s string) (string, error) {
	return URL(s, PublicWebURLConstraints)
}

// SiteBaseURL validates the site's canonical base URL and strips trailing
// slashes. Private hosts are allowed so local deployments work.
func SiteBaseURL(s string) (string, error) {
	v, err := URL(s, URLConstraints{AllowedSchemes: []string{"https", "http"}, MaxLength: 2048})
	if err != nil {
		return "", err
	}
	return strings.TrimRight(v, "/"), nil
}
