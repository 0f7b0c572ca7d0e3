package identity

import (
	"fmt"
	"strings"
)

// Provider is a federated sign-in provider. The set is closed.
type Provider int

const (
	Google Provider = iota + 1
	GitHub
	Facebook
)

// Providers lists every supported provider in display order.
func Providers() []Provider {
	return []Provider{Google, GitHub, Facebook}
}

// ParseProvider resolves a provider from its short name.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "google":
		return Google, nil
	case "github":
		return GitHub, nil
	case "facebook":
		return Facebook, nil
	}
	return 0, fmt.Errorf("unknown provider %q", name)
}

// String returns the short name used in URLs and config keys.
func (p Provider) String() string {
	switch p {
	case Google:
		return "google"
	case GitHub:
		return "github"
	case Facebook:
		return "facebook"
	}
	return fmt.Sprintf("provider(%d)", int(p))
}

// ProviderID returns the identity provider's id for p (e.g. "google.com").
func (p Provider) ProviderID() string {
	switch p {
	case Google:
		return "google.com"
	case GitHub:
		return "github.com"
	case Facebook:
		return "facebook.com"
	}
	return ""
}

// Valid reports whether p is one of the declared providers.
func (p Provider) Valid() bool {
	return p >= Google && p <= Facebook
}
