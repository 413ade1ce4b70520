package sources

import (
	"bufio"
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"contribot/internal/platform/logger"
)

var (
	mdLink  = regexp.MustCompile(`\[[^\]]*\]\((https?://(?:www\.)?github\.com/[^)\s]+)\)`)
	mdLabel = regexp.MustCompile(`(?i)\blabel:\s*(.+?)\s*$`)
)

// github.com paths that are not owner/name
var reservedOwners = map[string]struct{}{
	"topics": {}, "sponsors": {}, "orgs": {}, "marketplace": {},
	"features": {}, "collections": {}, "apps": {}, "settings": {},
}

// ParseMarkdown reads awesome-list style bullets:
//
//	- [title](https://github.com/owner/name) - description. label: help wanted
//
// Lines without a GitHub link are prose and ignored
func ParseMarkdown(body []byte, log logger.Logger) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(text, "- ") && !strings.HasPrefix(text, "* ") {
			continue
		}
		m := mdLink.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		owner, name, ok := repoFromURL(m[1])
		if !ok {
			log.Debug().Int("line", line).Str("link", m[1]).Msg("github link is not a repository")
			continue
		}
		e := Entry{Owner: owner, Name: name}
		if lm := mdLabel.FindStringSubmatch(text); lm != nil {
			e.Label = strings.Trim(lm[1], " `*_")
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func repoFromURL(raw string) (owner, name string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner, name = parts[0], strings.TrimSuffix(parts[1], ".git")
	if _, reserved := reservedOwners[strings.ToLower(owner)]; reserved {
		return "", "", false
	}
	return owner, name, owner != "" && name != ""
}
