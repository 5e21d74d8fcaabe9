package probe

import (
	"fmt"
	"strings"
)

// Kind names the backend variant active in a session. Exactly one is active
// at a time; the probe only reads it.
type Kind int

const (
	// PrimaryBrowser is the static-fetch backend: plain HTTP requests, the raw
	// response body, no script execution.
	PrimaryBrowser Kind = iota + 1
	// DriverBrowser is the live-driver backend: a real (usually headless)
	// Chrome with a rendered DOM and in-page script execution.
	DriverBrowser
)

func (k Kind) String() string {
	switch k {
	case PrimaryBrowser:
		return "PrimaryBrowser"
	case DriverBrowser:
		return "DriverBrowser"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// CanExecuteScript reports whether the variant can run script in the page.
func (k Kind) CanExecuteScript() bool {
	return k == DriverBrowser
}

// ParseKind accepts the canonical names and the config aliases
// http/static and browser/driver/rod.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primarybrowser", "http", "static":
		return PrimaryBrowser, nil
	case "driverbrowser", "browser", "driver", "rod":
		return DriverBrowser, nil
	}
	return 0, fmt.Errorf("probe: unknown backend %q", s)
}
