package sources

import (
	"bytes"
	"encoding/json"

	"contribot/internal/core/ref"
	"contribot/internal/platform/logger"
)

type jsonEntry struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// ParseJSON reads an array mixing {owner, name, label?} objects and "owner/name" strings
func ParseJSON(body []byte, log logger.Logger) ([]Entry, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				if owner, name, ok := ref.ParseSlug(s); ok {
					out = append(out, Entry{Owner: owner, Name: name})
					continue
				}
			}
			log.Warn().Int("entry", i).Msg("skipping json string that is not owner/name")
			continue
		}
		var je jsonEntry
		if err := json.Unmarshal(item, &je); err != nil {
			log.Warn().Int("entry", i).Err(err).Msg("skipping malformed json entry")
			continue
		}
		out = append(out, Entry{Owner: je.Owner, Name: je.Name, Label: je.Label})
	}
	return out, nil
}
