package question

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks candidate payloads for required fields. It does not
// judge content quality; that is the vetter's job.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterStructValidation(answerMatchesType, Candidate{})
	return &Validator{v: v}
}

// Validate returns a readable error listing every failing field.
func (cv *Validator) Validate(c Candidate) error {
	err := cv.v.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func answerMatchesType(sl validator.StructLevel) {
	c := sl.Current().Interface().(Candidate)
	if c.Answer.Type != "" && c.Answer.Type != c.Type {
		sl.ReportError(c.Answer.Type, "Answer.Type", "answer_type", "eqfield", string(c.Type))
	}
}
