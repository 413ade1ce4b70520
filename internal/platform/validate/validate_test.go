package validate

import (
	"testing"

	perr "contribot/internal/platform/errors"
	kit "contribot/internal/platform/testkit"
)

type entry struct {
	Repo  string `json:"repo" validate:"required,repo_slug"`
	Label string `json:"label" validate:"required,max=50"`
	Level int    `json:"level" validate:"min=1,max=5"`
}

func TestStruct(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		in    entry
		field string
	}{
		{"ok", entry{Repo: "foo/bar", Label: "good first issue", Level: 1}, ""},
		{"missing repo", entry{Label: "x", Level: 1}, "repo"},
		{"bad slug", entry{Repo: "foo/bar/baz", Label: "x", Level: 1}, "repo"},
		{"leading hyphen owner", entry{Repo: "-foo/bar", Label: "x", Level: 1}, "repo"},
		{"bad name rune", entry{Repo: "foo/b@r", Label: "x", Level: 1}, "repo"},
		{"dotted name", entry{Repo: "foo/bar.go_x", Label: "x", Level: 1}, ""},
		{"level too high", entry{Repo: "a/b", Label: "x", Level: 9}, "level"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Struct(c.in)
			if c.field == "" {
				kit.NoErr(t, err)
				return
			}
			if !perr.IsCode(err, perr.ErrorCodeValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
			e, _ := perr.As(err)
			kit.MustEqual(t, e.Field(), c.field, "field")
		})
	}
}

func TestShortMessages(t *testing.T) {
	t.Parallel()
	err := Struct(entry{Repo: "a/b", Label: "x", Level: 0})
	kit.MustContain(t, err.Error(), "level must be at least 1")
}
