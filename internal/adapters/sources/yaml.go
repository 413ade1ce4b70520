package sources

import (
	"contribot/internal/core/ref"
	"contribot/internal/platform/logger"

	"gopkg.in/yaml.v3"
)

type yamlEntry struct {
	Repo  string `yaml:"repo"`
	Label string `yaml:"label"`
}

// ParseYAML reads a list of {repo: owner/name, label: x}
func ParseYAML(body []byte, log logger.Logger) ([]Entry, error) {
	var raw []yaml.Node
	if err := yaml.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for i := range raw {
		var ye yamlEntry
		if err := raw[i].Decode(&ye); err != nil {
			log.Warn().Int("entry", i).Int("line", raw[i].Line).Err(err).Msg("skipping malformed yaml entry")
			continue
		}
		owner, name, ok := ref.ParseSlug(ye.Repo)
		if !ok {
			log.Warn().Int("entry", i).Int("line", raw[i].Line).Str("repo", ye.Repo).Msg("skipping yaml entry without owner/name")
			continue
		}
		out = append(out, Entry{Owner: owner, Name: name, Label: ye.Label})
	}
	return out, nil
}
