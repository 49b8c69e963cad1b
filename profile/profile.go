// Package profile retrieves the account's social profile. The display name
// is load-bearing: several downstream API paths embed it literally in the
// URL, so an unusable name is reported as empty rather than substituted.
package profile

import "strings"

// Profile holds the account identity fields returned by the profile
// endpoint. An empty DisplayName is a valid, meaningful state: callers must
// branch to displayName-independent endpoints rather than trust a
// placeholder.
type Profile struct {
	DisplayName string `json:"displayName"`
	FullName    string `json:"fullName"`
	Email       string `json:"userName"`
}

// UsableDisplayName reports whether name can be embedded in downstream URLs.
// The vendor substitutes generic placeholders ("user"/"User") on partially
// provisioned accounts; those are as useless as an empty string.
func UsableDisplayName(name string) bool {
	return name != "" && !strings.EqualFold(name, "user")
}
