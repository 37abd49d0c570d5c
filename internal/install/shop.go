package install

import (
	"fmt"
	"regexp"
	"strings"
)

var shopLabel = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// NormalizeShop accepts "name", "name.myshopify.com" or a URL to it and returns the bare host.
// Anything outside suffix is rejected so the handshake never talks to an arbitrary host.
func NormalizeShop(raw, suffix string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidShop)
	}
	if suffix == "" {
		suffix = ".myshopify.com"
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}
	if !strings.Contains(s, ".") {
		s += suffix
	}
	name, ok := strings.CutSuffix(s, suffix)
	if !ok || !shopLabel.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShop, raw)
	}
	return s, nil
}
