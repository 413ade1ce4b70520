package sources

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"strings"

	"contribot/internal/core/ref"
	"contribot/internal/platform/logger"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var embedded []byte

// Kinds of adapter a source may name
const (
	KindMarkdown = "markdown"
	KindYAML     = "yaml"
	KindJSON     = "json"
)

var parsers = map[string]ParseFunc{
	KindMarkdown: ParseMarkdown,
	KindYAML:     ParseYAML,
	KindJSON:     ParseJSON,
}

// Source is one configured list
type Source struct {
	ID      string `yaml:"id"`
	Adapter string `yaml:"adapter"`
	URL     string `yaml:"url"`
	Label   string `yaml:"label"`
	Enabled *bool  `yaml:"enabled"`
}

// IsEnabled treats a missing flag as on
func (s Source) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// File is the on-disk shape of sources.yaml
type File struct {
	Defaults struct {
		Label   string `yaml:"label"`
		Adapter string `yaml:"adapter"`
	} `yaml:"defaults"`
	Sources []Source `yaml:"sources"`
}

// Registry maps source ids to adapters, in file order
type Registry struct {
	sources []Source
	client  *http.Client
	log     logger.Logger
}

// Load reads a sources file; an empty path uses the built-in list
func Load(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(embedded)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sources: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes, applies defaults and validates
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("sources: parse: %w", err)
	}
	f.applyDefaults()
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) applyDefaults() {
	if f.Defaults.Label == "" {
		f.Defaults.Label = "good first issue"
	}
	if f.Defaults.Adapter == "" {
		f.Defaults.Adapter = KindMarkdown
	}
	for i := range f.Sources {
		s := &f.Sources[i]
		s.ID = strings.TrimSpace(s.ID)
		s.Adapter = strings.ToLower(strings.TrimSpace(s.Adapter))
		if s.Adapter == "" {
			s.Adapter = f.Defaults.Adapter
		}
		if s.Label == "" {
			s.Label = f.Defaults.Label
		}
	}
}

func (f *File) validate() error {
	var errs []string
	seen := map[string]bool{}
	for i, s := range f.Sources {
		switch {
		case s.ID == "":
			errs = append(errs, fmt.Sprintf("sources[%d].id is required", i))
		case seen[s.ID]:
			errs = append(errs, fmt.Sprintf("sources[%d].id %q is duplicated", i, s.ID))
		}
		seen[s.ID] = true
		if _, ok := parsers[s.Adapter]; !ok {
			errs = append(errs, fmt.Sprintf("sources[%d].adapter %q is unknown", i, s.Adapter))
		}
		if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
			errs = append(errs, fmt.Sprintf("sources[%d].url must be http(s)", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("sources: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NewRegistry builds a registry over f. client may be nil
func NewRegistry(f *File, client *http.Client, log logger.Logger) *Registry {
	return &Registry{sources: f.Sources, client: client, log: log}
}

// Enabled returns the enabled sources in file order
func (r *Registry) Enabled() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}

// Lookup finds a source by id, enabled or not
func (r *Registry) Lookup(id string) (Source, bool) {
	for _, s := range r.sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// Adapter builds the adapter for s
func (r *Registry) Adapter(s Source) Adapter {
	return NewHTTPAdapter(s.Adapter, s.ID, s.Label, parsers[s.Adapter], r.client, r.log)
}

// Fetch runs the adapter of s against its URL
func (r *Registry) Fetch(ctx context.Context, s Source) ([]ref.Repo, error) {
	return r.Adapter(s).Fetch(ctx, s.URL)
}

// Batch is the result of fetching one source
type Batch struct {
	Source Source
	Refs   []ref.Repo
	Err    error
}

// FetchAll fetches every enabled source. A failing source is reported in
// its batch and the rest still run
func (r *Registry) FetchAll(ctx context.Context) []Batch {
	enabled := r.Enabled()
	out := make([]Batch, 0, len(enabled))
	for _, s := range enabled {
		if ctx.Err() != nil {
			out = append(out, Batch{Source: s, Err: ctx.Err()})
			continue
		}
		refs, err := r.Fetch(ctx, s)
		if err != nil {
			r.log.Warn().Err(err).Str("source", s.ID).Msg("source fetch failed")
		}
		out = append(out, Batch{Source: s, Refs: refs, Err: err})
	}
	return out
}
