// Package fingerprint computes stable digests over the externally observable
// metadata of repositories and issues. A digest changes exactly when one of
// the tracked fields changes, which is what drives re-annotation
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
)

// Digest is a lowercase hex sha256
type Digest string

// repoFields fixes the canonical field order for repositories
type repoFields struct {
	Owner     string   `json:"owner"`
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	SourceID  string   `json:"source_id"`
	Languages []string `json:"languages,omitempty"`
}

// issueFields fixes the canonical field order for issues.
// Title and body are deliberately absent
type issueFields struct {
	CommentCount int      `json:"comment_count"`
	State        string   `json:"state"`
	Assignees    []string `json:"assignees"`
}

// HashRepoMetadata digests the change-detection fields of a repository.
// languages is taken in the given (volume) order; nil omits the field so
// count-only observations stay comparable with each other
func HashRepoMetadata(owner, name, label, sourceID string, languages []string) Digest {
	f := repoFields{
		Owner:    owner,
		Name:     name,
		Label:    label,
		SourceID: sourceID,
	}
	if len(languages) > 0 {
		f.Languages = languages
	}
	return sum(f)
}

// HashIssueMetadata digests comment count, state and assignees.
// Assignee order is not significant and nil equals empty
func HashIssueMetadata(commentCount int, state string, assignees []string) Digest {
	as := make([]string, len(assignees))
	copy(as, assignees)
	slices.Sort(as)
	return sum(issueFields{
		CommentCount: commentCount,
		State:        strings.ToLower(strings.TrimSpace(state)),
		Assignees:    as,
	})
}

func sum(v any) Digest {
	// struct-only input with string and int fields cannot fail to marshal
	b, _ := json.Marshal(v)
	h := sha256.Sum256(b)
	return Digest(hex.EncodeToString(h[:]))
}
