package github

import (
	"slices"
	"strings"
	"time"

	gh "github.com/google/go-github/v68/github"
)

// Issue is the observable shape of one open-listing entry
type Issue struct {
	Number       int
	Title        string
	Body         *string
	State        string
	CommentCount int
	Assignees    []string
	URL          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Languages is a repository language breakdown
type Languages struct {
	// Ordered by byte volume descending, ties by name
	Ordered []string
	Raw     map[string]int64
}

func toIssue(in *gh.Issue) Issue {
	out := Issue{
		Number:       in.GetNumber(),
		Title:        in.GetTitle(),
		Body:         in.Body,
		State:        strings.ToLower(in.GetState()),
		CommentCount: in.GetComments(),
		URL:          in.GetHTMLURL(),
		CreatedAt:    in.GetCreatedAt().Time,
		UpdatedAt:    in.GetUpdatedAt().Time,
	}
	for _, u := range in.Assignees {
		if l := u.GetLogin(); l != "" {
			out.Assignees = append(out.Assignees, l)
		}
	}
	return out
}

func toLanguages(raw map[string]int) Languages {
	out := Languages{Raw: make(map[string]int64, len(raw)), Ordered: make([]string, 0, len(raw))}
	for name, n := range raw {
		out.Raw[name] = int64(n)
		out.Ordered = append(out.Ordered, name)
	}
	slices.SortFunc(out.Ordered, func(a, b string) int {
		if out.Raw[a] != out.Raw[b] {
			if out.Raw[a] > out.Raw[b] {
				return -1
			}
			return 1
		}
		return strings.Compare(a, b)
	})
	return out
}
