// Package ref holds the repository reference that flows from source
// adapters into reconciliation
package ref

import "strings"

// Repo names one repository as a curated source lists it
type Repo struct {
	Owner    string
	Name     string
	SourceID string
	Label    string
}

// Slug is owner/name
func (r Repo) Slug() string { return r.Owner + "/" + r.Name }

// ParseSlug splits "owner/name". ok is false when either half is missing
func ParseSlug(s string) (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}
