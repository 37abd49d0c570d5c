package tenants

import (
	"errors"
	"sort"
	"strings"
	"time"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusUninstalled Status = "uninstalled"
)

var ErrNotFound = errors.New("tenant not found")

// Tenant is one installing shop and the credential it granted.
type Tenant struct {
	ID            string // shop domain (acme.myshopify.com)
	AccessToken   string
	Scope         []string
	Status        Status
	InstalledAt   time.Time
	UpdatedAt     time.Time
	UninstalledAt *time.Time
}

func (t Tenant) Active() bool { return t.Status == StatusActive }

// HasScope reports whether every requested scope was granted.
// A write_x grant implies read_x, as on the provider side.
func (t Tenant) HasScope(want ...string) bool {
	granted := map[string]struct{}{}
	for _, s := range t.Scope {
		granted[s] = struct{}{}
		if strings.HasPrefix(s, "write_") {
			granted["read_"+strings.TrimPrefix(s, "write_")] = struct{}{}
		}
	}
	for _, w := range want {
		if _, ok := granted[w]; !ok {
			return false
		}
	}
	return true
}

// ParseScope splits a comma separated scope string into a sorted, de-duplicated list.
func ParseScope(raw string) []string {
	return NormalizeScope(strings.Split(raw, ","))
}

func NormalizeScope(in []string) []string {
	set := map[string]struct{}{}
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func JoinScope(scope []string) string { return strings.Join(scope, ",") }

func clone(t Tenant) Tenant {
	c := t
	c.Scope = append([]string(nil), t.Scope...)
	if t.UninstalledAt != nil {
		u := *t.UninstalledAt
		c.UninstalledAt = &u
	}
	return c
}
