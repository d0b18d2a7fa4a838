package vetting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/llm"
	"github.com/mind-engage/examprep/internal/metrics"
	"github.com/mind-engage/examprep/internal/question"
)

// AI asks a language model to validate and repair a candidate. Any failure
// (gateway error, timeout, unparseable or structurally broken output)
// degrades to the deterministic result, capped below the review threshold.
type AI struct {
	gateway  llm.Gateway
	prompt   PromptTemplate
	fallback *Deterministic
	th       Thresholds
	timeout  time.Duration
	log      *zap.Logger
}

type AIOption func(*AI)

func WithTimeout(d time.Duration) AIOption { return func(a *AI) { a.timeout = d } }
func WithLogger(l *zap.Logger) AIOption {
	return func(a *AI) {
		if l != nil {
			a.log = l
		}
	}
}

func NewAI(gw llm.Gateway, prompt PromptTemplate, th Thresholds, opts ...AIOption) *AI {
	th = th.normalized()
	a := &AI{
		gateway:  gw,
		prompt:   prompt,
		fallback: NewDeterministic(th),
		th:       th,
		timeout:  20 * time.Second,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// New picks the AI vetter when a gateway is configured and the
// deterministic one otherwise.
func New(gw llm.Gateway, th Thresholds, log *zap.Logger, timeout time.Duration) (Vetter, error) {
	if gw == nil {
		return NewDeterministic(th), nil
	}
	pt, err := LoadPrompt("vet")
	if err != nil {
		return nil, err
	}
	return NewAI(gw, pt, th, WithLogger(log), WithTimeout(timeout)), nil
}

func (a *AI) Vet(ctx context.Context, c question.Candidate) Result {
	c = question.Normalize(c)

	msgs, err := a.prompt.Messages(c)
	if err != nil {
		return capBelowReview(a.fallback.vet(c), a.th, IssueAIUnavailable)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	raw, err := a.gateway.Complete(callCtx, msgs, a.prompt.Temperature, a.prompt.MaxTokens)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(a.gateway.Name(), "error").Inc()
		a.log.Warn("ai vetting unavailable, using deterministic checks",
			zap.String("provider", a.gateway.Name()), zap.Error(err))
		return capBelowReview(a.fallback.vet(c), a.th, IssueAIUnavailable)
	}

	parsed := parseAIOutput(raw)
	if parsed.Err != nil {
		metrics.LLMRequests.WithLabelValues(a.gateway.Name(), "unparseable").Inc()
		a.log.Warn("ai vetting output unparseable", zap.Error(parsed.Err))
		return capBelowReview(a.fallback.vet(c), a.th, IssueAIUnparseable)
	}
	metrics.LLMRequests.WithLabelValues(a.gateway.Name(), "ok").Inc()

	repaired := parsed.Value.apply(c)
	if structural := StructuralIssues(repaired); len(structural) > 0 {
		a.log.Warn("ai vetting output failed structural checks", zap.Strings("issues", structural))
		return capBelowReview(a.fallback.vet(c), a.th, structural...)
	}
	return finalize(repaired, parsed.Value.QualityScore, sanitizeIssues(parsed.Value.Issues), a.th, SourceAI)
}

// parseResult is either a decoded payload or the reason decoding failed.
type parseResult struct {
	Value *aiPayload
	Err   error
}

type aiOption struct {
	Key       string `json:"key"`
	Text      string `json:"text"`
	TextLatex string `json:"text_latex"`
}

type aiPayload struct {
	Stem           string
	StemLatex      string
	Options        []aiOption
	CorrectOption  string
	CorrectInteger *float64
	Solution       string
	QualityScore   float64
	Issues         []string
}

// rawPayload mirrors the JSON the prompt asks for, with loose types where
// models are known to drift (numbers as strings, issues as one string).
type rawPayload struct {
	Stem           string          `json:"stem"`
	StemLatex      string          `json:"stem_latex"`
	Options        []aiOption      `json:"options"`
	CorrectOption  string          `json:"correct_option"`
	CorrectInteger json.RawMessage `json:"correct_integer"`
	Solution       string          `json:"solution"`
	QualityScore   json.RawMessage `json:"quality_score"`
	Issues         json.RawMessage `json:"issues"`
}

var errNoJSONObject = errors.New("no json object in model output")

func parseAIOutput(raw string) parseResult {
	body := extractJSONObject(raw)
	if body == "" {
		return parseResult{Err: errNoJSONObject}
	}
	var rp rawPayload
	if err := json.Unmarshal([]byte(body), &rp); err != nil {
		return parseResult{Err: fmt.Errorf("decode model json: %w", err)}
	}

	score, ok := looseNumber(rp.QualityScore)
	if !ok || math.IsInf(score, 0) || math.IsNaN(score) {
		return parseResult{Err: errors.New("quality_score missing or not a number")}
	}
	issues, ok := looseStrings(rp.Issues)
	if !ok {
		return parseResult{Err: errors.New("issues is not a list of strings")}
	}

	p := &aiPayload{
		Stem:          strings.TrimSpace(rp.Stem),
		StemLatex:     strings.TrimSpace(rp.StemLatex),
		Options:       rp.Options,
		CorrectOption: strings.ToUpper(strings.TrimSpace(rp.CorrectOption)),
		Solution:      strings.TrimSpace(rp.Solution),
		QualityScore:  score,
		Issues:        issues,
	}
	if v, ok := looseNumber(rp.CorrectInteger); ok {
		p.CorrectInteger = &v
	}
	return parseResult{Value: p}
}

// apply overlays the model's repairs on c and re-normalizes the result, so
// options come back in key order whatever order the model used. Empty fields
// keep the original.
func (p *aiPayload) apply(c question.Candidate) question.Candidate {
	out := c
	if p.Stem != "" {
		out.Stem = p.Stem
	}
	if p.StemLatex != "" {
		out.StemLatex = p.StemLatex
	}
	if c.Type == question.SingleChoice && len(p.Options) > 0 {
		out.Options = make([]question.Option, 0, len(p.Options))
		for _, o := range p.Options {
			out.Options = append(out.Options, question.Option{
				Key:       strings.ToUpper(strings.TrimSpace(o.Key)),
				Text:      strings.TrimSpace(o.Text),
				TextLatex: strings.TrimSpace(o.TextLatex),
			})
		}
	}

	out.Answer.Type = c.Type
	switch c.Type {
	case question.SingleChoice:
		if p.CorrectOption != "" {
			out.Answer.CorrectOption = p.CorrectOption
		}
	case question.IntegerAnswer:
		out.Answer.CorrectInteger = nil
		if v := p.CorrectInteger; v != nil && !math.IsInf(*v, 0) && !math.IsNaN(*v) && *v == math.Trunc(*v) &&
			math.Abs(*v) < 1<<53 {
			n := int64(*v)
			out.Answer.CorrectInteger = &n
		} else if p.CorrectInteger == nil && c.Answer.CorrectInteger != nil {
			n := *c.Answer.CorrectInteger
			out.Answer.CorrectInteger = &n
		}
	}
	if p.Solution != "" {
		out.Answer.Solution = p.Solution
	}
	return question.Normalize(out)
}

// extractJSONObject strips markdown fences and prose around the first
// top-level JSON object.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func looseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func looseStrings(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if strings.TrimSpace(one) == "" {
			return nil, true
		}
		return []string{one}, true
	}
	return nil, false
}

var nonCode = regexp.MustCompile(`[^a-z0-9]+`)

const maxIssueLen = 64

// sanitizeIssues turns free-form model issue text into snake_case codes.
func sanitizeIssues(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		code := strings.Trim(nonCode.ReplaceAllString(strings.ToLower(s), "_"), "_")
		if len(code) > maxIssueLen {
			code = strings.TrimRight(code[:maxIssueLen], "_")
		}
		out = appendUnique(out, code)
	}
	return out
}
