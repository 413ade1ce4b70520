// Package summarizer asks a chat model for repository summaries and issue
// onboarding notes, constrained to a JSON schema and validated on return
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"contribot/internal/platform/config"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	pstrings "contribot/internal/platform/strings"
	"contribot/internal/platform/validate"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 800
	maxBodyRunes     = 4000
)

// RepoSummary is the model's view of a repository
type RepoSummary struct {
	Summary string `json:"summary" jsonschema:"description=Two or three sentences a newcomer can read to decide whether to contribute" validate:"required,max=2000"`
}

// IssueAnalysis is the model's onboarding note for one issue
type IssueAnalysis struct {
	Intro      string   `json:"intro" jsonschema:"description=What the issue asks for in plain words" validate:"required,max=2000"`
	Difficulty int      `json:"difficulty" jsonschema:"minimum=1,maximum=5,description=1 is trivial and 5 needs deep project knowledge" validate:"min=1,max=5"`
	FirstSteps []string `json:"first_steps" jsonschema:"description=Concrete first steps for a new contributor" validate:"required,min=1,max=8,dive,required"`
}

// Options configures the client
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	MaxRetries int
}

// OptionsFromConfig reads an OPENAI_ scoped Conf
func OptionsFromConfig(c config.Conf) Options {
	return Options{
		APIKey:     c.MayString("API_KEY", ""),
		BaseURL:    c.MayString("BASE_URL", ""),
		Model:      c.MayString("MODEL", defaultModel),
		MaxTokens:  c.MayInt("MAX_TOKENS", defaultMaxTokens),
		MaxRetries: c.MayInt("MAX_RETRIES", 2),
	}
}

// OpenAI implements the summarizer over the chat completions API
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int
	log       logger.Logger

	repoSchema  any
	issueSchema any
}

// New builds a client. An API key is required
func New(o Options, log logger.Logger) (*OpenAI, error) {
	if strings.TrimSpace(o.APIKey) == "" {
		return nil, perr.InvalidArgf("summarizer: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(o.APIKey)}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(o.MaxRetries))
	}
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       o.Model,
		maxTokens:   o.MaxTokens,
		log:         logger.Component(log, "summarizer"),
		repoSchema:  schemaFor[RepoSummary](),
		issueSchema: schemaFor[IssueAnalysis](),
	}, nil
}

const repoSystem = `You write short, friendly introductions to open source repositories for first-time contributors.
Describe what the project does and what a newcomer would work with. Do not invent features.`

const issueSystem = `You help first-time contributors pick up GitHub issues.
Explain the issue plainly, rate its difficulty from 1 (trivial) to 5 (needs deep project knowledge), and list concrete first steps.`

// SummarizeRepo returns a newcomer-facing summary
func (s *OpenAI) SummarizeRepo(ctx context.Context, owner, name string, languages []string) (RepoSummary, error) {
	user := fmt.Sprintf("Repository: %s/%s\nLanguages by volume: %s", owner, name, strings.Join(languages, ", "))
	var out RepoSummary
	if err := s.chat(ctx, "repo_summary", s.repoSchema, repoSystem, user, &out); err != nil {
		return RepoSummary{}, err
	}
	return out, nil
}

// AnalyzeIssue returns an onboarding note for one issue
func (s *OpenAI) AnalyzeIssue(ctx context.Context, owner, name, title, body string) (IssueAnalysis, error) {
	user := fmt.Sprintf("Repository: %s/%s\nTitle: %s\n\n%s", owner, name, title, pstrings.Truncate(body, maxBodyRunes))
	var out IssueAnalysis
	if err := s.chat(ctx, "issue_analysis", s.issueSchema, issueSystem, user, &out); err != nil {
		return IssueAnalysis{}, err
	}
	return out, nil
}

func (s *OpenAI) chat(ctx context.Context, schemaName string, schema any, system, user string, result any) error {
	params := openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens: openai.Int(int64(s.maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}

	start := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return classify(err)
	}
	s.log.Debug().
		Str("schema", schemaName).
		Str("model", s.model).
		Dur("latency", time.Since(start)).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("summarizer completion")

	if len(resp.Choices) == 0 {
		return perr.Validationf("summarizer: %s came back with no choices", schemaName)
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeValidation, "summarizer: %s is not valid json", schemaName)
	}
	if err := validate.Struct(result); err != nil {
		return perr.WithOp(err, schemaName)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "summarizer upstream status %d", apiErr.StatusCode)
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return perr.Wrapf(err, perr.ErrorCodeUnauthorized, "summarizer credential rejected")
		}
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "summarizer request failed with status %d", apiErr.StatusCode)
	}
	return perr.Wrap(err, perr.ErrorCodeUnavailable, "summarizer unreachable")
}

func schemaFor[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}
