package scoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mind-engage/examprep/internal/question"
)

// ErrMalformedResponse is returned for responses of a shape no strategy
// can read (objects, arrays, booleans).
var ErrMalformedResponse = errors.New("malformed response")

// Item is the minimal view of a question needed for scoring.
type Item struct {
	QuestionID    string              `json:"question_id"`
	Type          question.Type       `json:"type"`
	Subject       string              `json:"subject"`
	Topic         string              `json:"topic"`
	Difficulty    question.Difficulty `json:"difficulty"`
	Marks         float64             `json:"marks"`
	NegativeMarks float64             `json:"negative_marks"`
	Answer        question.AnswerKey  `json:"answer"`
}

// Strategy decides whether a non-blank response is correct.
type Strategy interface {
	Correct(item Item, response any) (bool, error)
}

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Correct(item Item, response any) (bool, error) {
	s, ok := response.(string)
	if !ok {
		return false, fmt.Errorf("%w: single-choice answer for %s must be an option key", ErrMalformedResponse, item.QuestionID)
	}
	key := strings.TrimSpace(item.Answer.CorrectOption)
	if key == "" {
		return false, nil
	}
	return strings.EqualFold(strings.TrimSpace(s), key), nil
}

type integerStrategy struct{}

func (integerStrategy) Correct(item Item, response any) (bool, error) {
	v, ok, err := parseNumber(response)
	if err != nil {
		return false, fmt.Errorf("%w: integer answer for %s: %v", ErrMalformedResponse, item.QuestionID, err)
	}
	if !ok || item.Answer.CorrectInteger == nil {
		return false, nil
	}
	return v == float64(*item.Answer.CorrectInteger), nil
}

// blank reports whether a response counts as unattempted.
func blank(response any) bool {
	switch v := response.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}
