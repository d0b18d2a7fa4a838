package vetting

import (
	"strings"

	"github.com/mind-engage/examprep/internal/question"
)

// Issue codes produced by the structural checks.
const (
	IssueStemEmpty            = "stem_empty"
	IssueOptionCountInvalid   = "mcq_option_count_invalid"
	IssueOptionKeysInvalid    = "mcq_option_keys_invalid"
	IssueOptionTextEmpty      = "mcq_option_text_empty"
	IssueOptionDuplicate      = "mcq_option_duplicate"
	IssueMissingCorrectOption = "missing_correct_option"
	IssueMissingIntegerAnswer = "missing_integer_answer"
	IssueAnswerTypeMismatch   = "answer_type_mismatch"
	IssueUnsupportedType      = "unsupported_question_type"
	IssueAIUnparseable        = "ai_output_unparseable"
	IssueAIUnavailable        = "ai_unavailable"
)

// StructuralIssues runs the checks shared by both vetting paths. An empty
// result means the question is structurally deliverable and scorable.
func StructuralIssues(c question.Candidate) []string {
	var issues []string
	if strings.TrimSpace(c.Stem) == "" {
		issues = append(issues, IssueStemEmpty)
	}
	if c.Answer.Type != "" && c.Answer.Type != c.Type {
		issues = append(issues, IssueAnswerTypeMismatch)
	}

	switch c.Type {
	case question.SingleChoice:
		issues = append(issues, optionIssues(c)...)
	case question.IntegerAnswer:
		if c.Answer.CorrectInteger == nil {
			issues = append(issues, IssueMissingIntegerAnswer)
		}
	default:
		issues = append(issues, IssueUnsupportedType)
	}
	return issues
}

func optionIssues(c question.Candidate) []string {
	var issues []string
	if len(c.Options) != len(question.OptionKeys) {
		issues = append(issues, IssueOptionCountInvalid)
	}

	keys := map[string]bool{}
	texts := map[string]bool{}
	keysOK := true
	emptyText := false
	dupText := false
	for _, o := range c.Options {
		k := strings.ToUpper(strings.TrimSpace(o.Key))
		if !validKey(k) || keys[k] {
			keysOK = false
		}
		keys[k] = true

		t := strings.Join(strings.Fields(strings.ToLower(o.Text)), " ")
		if t == "" {
			emptyText = true
			continue
		}
		if texts[t] {
			dupText = true
		}
		texts[t] = true
	}
	if !keysOK {
		issues = append(issues, IssueOptionKeysInvalid)
	}
	if emptyText {
		issues = append(issues, IssueOptionTextEmpty)
	}
	if dupText {
		issues = append(issues, IssueOptionDuplicate)
	}

	correct := strings.ToUpper(strings.TrimSpace(c.Answer.CorrectOption))
	if correct == "" || !keys[correct] || !validKey(correct) {
		issues = append(issues, IssueMissingCorrectOption)
	}
	return issues
}

func validKey(k string) bool {
	for _, ok := range question.OptionKeys {
		if k == ok {
			return true
		}
	}
	return false
}
