package question

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	fieldSep  = "\x1f"
	optionSep = "\x1e"
)

// Normalize returns a display-safe copy of c: text trimmed, option keys
// upper-cased and sorted A..D, the answer type defaulted to the question
// type. Casing inside display text is preserved.
func Normalize(c Candidate) Candidate {
	out := c
	out.Type = Type(strings.TrimSpace(strings.ToLower(string(c.Type))))
	out.Subject = strings.TrimSpace(c.Subject)
	out.Topic = strings.TrimSpace(c.Topic)
	out.Subtopic = strings.TrimSpace(c.Subtopic)
	out.Difficulty = Difficulty(strings.TrimSpace(strings.ToLower(string(c.Difficulty))))
	out.Stem = strings.TrimSpace(c.Stem)
	out.StemLatex = strings.TrimSpace(c.StemLatex)
	out.Fingerprint = strings.TrimSpace(c.Fingerprint)

	if len(c.Options) > 0 {
		out.Options = make([]Option, 0, len(c.Options))
		for _, o := range c.Options {
			out.Options = append(out.Options, Option{
				Key:       strings.ToUpper(strings.TrimSpace(o.Key)),
				Text:      strings.TrimSpace(o.Text),
				TextLatex: strings.TrimSpace(o.TextLatex),
			})
		}
		sort.SliceStable(out.Options, func(i, j int) bool { return out.Options[i].Key < out.Options[j].Key })
	}

	out.Answer.Type = Type(strings.TrimSpace(strings.ToLower(string(c.Answer.Type))))
	if out.Answer.Type == "" {
		out.Answer.Type = out.Type
	}
	out.Answer.CorrectOption = strings.ToUpper(strings.TrimSpace(c.Answer.CorrectOption))
	out.Answer.Solution = strings.TrimSpace(c.Answer.Solution)
	if out.Marks == 0 {
		out.Marks = DefaultMarks
	}
	if out.NegativeMarks == 0 {
		out.NegativeMarks = DefaultNegativeMarks
	}
	return out
}

// Fingerprint hashes the semantic content of c. Casing, Unicode width
// variants and runs of whitespace do not affect the result; option text,
// stem text, classification and the answer do.
func Fingerprint(c Candidate) string {
	n := Normalize(c)

	opts := make([]string, 0, len(n.Options))
	for _, o := range n.Options {
		opts = append(opts, o.Key+"="+foldForHash(o.Text))
	}

	var answer string
	switch n.Answer.Type {
	case IntegerAnswer:
		if n.Answer.CorrectInteger != nil {
			answer = "integer:" + strconv.FormatInt(*n.Answer.CorrectInteger, 10)
		} else {
			answer = "integer:"
		}
	default:
		answer = "option:" + n.Answer.CorrectOption
	}

	parts := []string{
		string(n.Type),
		foldForHash(n.Subject),
		foldForHash(n.Topic),
		foldForHash(n.Subtopic),
		foldForHash(n.Stem),
		strings.Join(opts, optionSep),
		answer,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, fieldSep)))
	return hex.EncodeToString(sum[:])
}

// foldForHash applies NFKC, Unicode case folding and whitespace collapsing.
func foldForHash(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
