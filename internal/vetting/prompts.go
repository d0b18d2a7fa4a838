package vetting

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/examprep/internal/llm"
	"github.com/mind-engage/examprep/internal/question"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// PromptTemplate is one YAML file under templates/.
type PromptTemplate struct {
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	SystemPrompt string  `yaml:"system_prompt"`
	UserPrompt   string  `yaml:"user_prompt"`
}

// LoadPrompt reads templates/<name>.yaml from the embedded filesystem.
func LoadPrompt(name string) (PromptTemplate, error) {
	data, err := templateFS.ReadFile("templates/" + name + ".yaml")
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("read prompt %s: %w", name, err)
	}
	var pt PromptTemplate
	if err := yaml.Unmarshal(data, &pt); err != nil {
		return PromptTemplate{}, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	if strings.TrimSpace(pt.UserPrompt) == "" {
		return PromptTemplate{}, fmt.Errorf("prompt %s: user_prompt is empty", name)
	}
	return pt, nil
}

// promptQuestion is the view of a candidate sent to the model. It carries
// the answer because the model is asked to check it.
type promptQuestion struct {
	Type           question.Type     `json:"type"`
	Subject        string            `json:"subject"`
	Topic          string            `json:"topic"`
	Subtopic       string            `json:"subtopic,omitempty"`
	Difficulty     string            `json:"difficulty"`
	Stem           string            `json:"stem"`
	StemLatex      string            `json:"stem_latex,omitempty"`
	Options        []question.Option `json:"options,omitempty"`
	CorrectOption  string            `json:"correct_option,omitempty"`
	CorrectInteger *int64            `json:"correct_integer,omitempty"`
	Solution       string            `json:"solution,omitempty"`
	HasDiagram     bool              `json:"has_diagram,omitempty"`
}

// Messages renders the transcript for one candidate.
func (pt PromptTemplate) Messages(c question.Candidate) ([]llm.Message, error) {
	payload, err := json.MarshalIndent(promptQuestion{
		Type:           c.Type,
		Subject:        c.Subject,
		Topic:          c.Topic,
		Subtopic:       c.Subtopic,
		Difficulty:     string(c.Difficulty),
		Stem:           c.Stem,
		StemLatex:      c.StemLatex,
		Options:        c.Options,
		CorrectOption:  c.Answer.CorrectOption,
		CorrectInteger: c.Answer.CorrectInteger,
		Solution:       c.Answer.Solution,
		HasDiagram:     c.DiagramRef != "" || c.DiagramSVG != "",
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	msgs := make([]llm.Message, 0, 2)
	if s := strings.TrimSpace(pt.SystemPrompt); s != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: s})
	}
	msgs = append(msgs, llm.Message{
		Role:    llm.RoleUser,
		Content: strings.ReplaceAll(pt.UserPrompt, "{{.Question}}", string(payload)),
	})
	return msgs, nil
}
