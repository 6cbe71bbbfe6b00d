// Package judge implements the LLM-backed pairwise comparator. A prompt
// template renders the query and the two papers, the model answers with a
// small JSON object and the reply is parsed once into a domain.Judgment.
package judge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
)

var _ ports.Comparator = (*LLMComparator)(nil)

// Defaults used when a Config field is left at its zero value.
const (
	DefaultMaxTokens   = 150
	DefaultTemperature = 0.0
)

// DefaultPrompt asks for the paper that is more useful to cite. Relevance
// comes first; method clarity only breaks ties, and popularity must not
// influence the decision.
const DefaultPrompt = `Decide which paper is MORE USEFUL TO CITE for:
"{{.Query}}"
{{- if .Profile.Domain}}

Domain: {{.Profile.Domain}}
Required: {{orNone (join .Profile.Required ", ")}}
Optional: {{orNone (join .Profile.Optional ", ")}}
{{- end}}

Priority:
1) Relevance to query.
2) If tied, prefer clearer method/evaluation.
Do NOT prefer by citation count, fame, or broadness.

Paper A: {{default "(untitled)" .PaperA.Title}}
Abstract: {{default "(No abstract available)" .AbstractA}}

Paper B: {{default "(untitled)" .PaperB.Title}}
Abstract: {{default "(No abstract available)" .AbstractB}}

Return JSON only: {"winner": "A" | "B" | "draw", "confidence": <0.0-1.0>, "reasoning": "<max 20 words>"}`

// QueryProfile optionally describes the research question in more detail
// than the raw query string.
type QueryProfile struct {
	Domain   string   `yaml:"domain" json:"domain" mapstructure:"domain"`
	Required []string `yaml:"required" json:"required" mapstructure:"required"`
	Optional []string `yaml:"optional" json:"optional" mapstructure:"optional"`
}

// Config controls prompt rendering and reply validation.
type Config struct {
	// Prompt is a text/template rendered with promptData. Empty selects
	// DefaultPrompt.
	Prompt      string  `yaml:"prompt" json:"prompt" mapstructure:"prompt"`
	Temperature float64 `yaml:"temperature" json:"temperature" mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens" mapstructure:"max_tokens" validate:"min=0,max=4096"`
	// AbstractCharLimit truncates abstracts inside the prompt. Zero selects
	// domain.DefaultAbstractCharLimit; a negative value disables truncation.
	AbstractCharLimit int `yaml:"abstract_char_limit" json:"abstract_char_limit" mapstructure:"abstract_char_limit"`
	// MinConfidence rejects replies whose confidence is lower, turning them
	// into failed matches.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence" mapstructure:"min_confidence" validate:"min=0,max=1"`
	// DisableJSONMode stops the judge from requesting structured output,
	// for providers or proxies that reject it.
	DisableJSONMode bool         `yaml:"disable_json_mode" json:"disable_json_mode" mapstructure:"disable_json_mode"`
	Profile         QueryProfile `yaml:"profile" json:"profile" mapstructure:"profile"`
}

// DefaultConfig returns the configuration used by the command line tool.
func DefaultConfig() Config {
	return Config{
		Temperature:       DefaultTemperature,
		MaxTokens:         DefaultMaxTokens,
		AbstractCharLimit: domain.DefaultAbstractCharLimit,
	}
}

type promptData struct {
	Query     string
	PaperA    domain.Paper
	PaperB    domain.Paper
	AbstractA string
	AbstractB string
	Profile   QueryProfile
}

// LLMComparator asks an LLM which of two papers better answers a query.
// It is stateless apart from its immutable configuration and is safe for
// concurrent use.
type LLMComparator struct {
	client   ports.LLMClient
	cfg      Config
	tmpl     *template.Template
	validate *validator.Validate
	logger   *zap.Logger
}

// Option customises an LLMComparator.
type Option func(*LLMComparator)

// WithLogger sets the logger used for per-call diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *LLMComparator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewLLMComparator validates cfg, compiles the prompt template and returns
// a comparator backed by client.
func NewLLMComparator(client ports.LLMClient, cfg Config, opts ...Option) (*LLMComparator, error) {
	if client == nil {
		return nil, errors.New("LLM client cannot be nil")
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("judge configuration validation failed: %w", err)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.AbstractCharLimit == 0 {
		cfg.AbstractCharLimit = domain.DefaultAbstractCharLimit
	}
	src := cfg.Prompt
	if src == "" {
		src = DefaultPrompt
	}
	tmpl, err := template.New("judgePrompt").Funcs(TemplateFuncs()).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse judge prompt template: %w", err)
	}

	c := &LLMComparator{
		client:   client,
		cfg:      cfg,
		tmpl:     tmpl,
		validate: v,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Prompt renders the prompt for one ordered pair.
func (c *LLMComparator) Prompt(a, b domain.Paper, query string) (string, error) {
	data := promptData{
		Query:     query,
		PaperA:    a,
		PaperB:    b,
		AbstractA: a.TruncatedAbstract(c.cfg.AbstractCharLimit),
		AbstractB: b.TruncatedAbstract(c.cfg.AbstractCharLimit),
		Profile:   c.cfg.Profile,
	}
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// Compare implements ports.Comparator.
func (c *LLMComparator) Compare(ctx context.Context, a, b domain.Paper, query string) (domain.Judgment, error) {
	ctx, span := otel.Tracer("papernav/judge").Start(ctx, "LLMComparator.Compare")
	defer span.End()
	span.SetAttributes(
		attribute.String("paper.a", a.ID),
		attribute.String("paper.b", b.ID),
		attribute.String("llm.model", c.client.GetModel()),
	)

	prompt, err := c.Prompt(a, b, query)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, err
	}

	options := map[string]any{
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
	}
	if !c.cfg.DisableJSONMode {
		options["response_format"] = "json_object"
	}

	start := time.Now()
	reply, err := c.client.Complete(ctx, prompt, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		return domain.Judgment{}, ports.NewLLMError(c.client.GetModel(), "compare", err)
	}

	j, err := parseJudgment(c.validate, reply)
	if err != nil {
		c.logger.Debug("unparseable judge reply",
			zap.String("paper_a", a.ID),
			zap.String("paper_b", b.ID),
			zap.Int("reply_chars", len(reply)),
			zap.Error(err),
		)
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, err
	}
	if j.Confidence < c.cfg.MinConfidence {
		err := fmt.Errorf("%w: confidence %.3f below minimum %.3f",
			domain.ErrInvalidJudgment, j.Confidence, c.cfg.MinConfidence)
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, err
	}

	c.logger.Debug("judge verdict",
		zap.String("paper_a", a.ID),
		zap.String("paper_b", b.ID),
		zap.Stringer("verdict", j.Verdict),
		zap.Float64("confidence", j.Confidence),
		zap.Duration("latency", time.Since(start)),
	)
	span.SetAttributes(
		attribute.String("judge.verdict", j.Verdict.String()),
		attribute.Float64("judge.confidence", j.Confidence),
	)
	span.SetStatus(codes.Ok, "")
	return j, nil
}
