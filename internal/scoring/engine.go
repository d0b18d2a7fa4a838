// Package scoring applies the marking scheme to a submitted answer map.
package scoring

import (
	"math"
	"sort"

	"github.com/mind-engage/examprep/internal/question"
)

type Outcome string

const (
	Unattempted Outcome = "unattempted"
	Correct     Outcome = "correct"
	Incorrect   Outcome = "incorrect"
)

// MaxPercentile keeps the score-ratio percentile below 100.
const MaxPercentile = 99.99

// QuestionResult is the per-question line of a scored submission.
type QuestionResult struct {
	QuestionID string             `json:"question_id"`
	Outcome    Outcome            `json:"outcome"`
	Delta      float64            `json:"delta"`
	Response   any                `json:"response,omitempty"`
	Answer     question.AnswerKey `json:"answer"`
}

// Breakdown aggregates one topic or difficulty group.
type Breakdown struct {
	Key       string  `json:"key"`
	Total     int     `json:"total"`
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
}

type Result struct {
	Score        float64          `json:"score"`
	MaxScore     float64          `json:"max_score"`
	Correct      int              `json:"correct"`
	Incorrect    int              `json:"incorrect"`
	Attempted    int              `json:"attempted"`
	Total        int              `json:"total"`
	Accuracy     float64          `json:"accuracy"`
	Percentile   float64          `json:"percentile"`
	ByTopic      []Breakdown      `json:"by_topic"`
	ByDifficulty []Breakdown      `json:"by_difficulty"`
	Questions    []QuestionResult `json:"questions"`
}

type Option func(*config)

type config struct {
	negativeMarking bool
}

// WithNegativeMarking toggles the wrong-answer penalty. It is on by default.
func WithNegativeMarking(on bool) Option { return func(c *config) { c.negativeMarking = on } }

// Engine routes each item to the strategy for its type.
type Engine struct {
	strategies map[question.Type]Strategy
	cfg        config
}

func NewEngine(opts ...Option) *Engine {
	cfg := config{negativeMarking: true}
	for _, o := range opts {
		o(&cfg)
	}
	return &Engine{
		strategies: map[question.Type]Strategy{
			question.SingleChoice:  singleChoiceStrategy{},
			question.IntegerAnswer: integerStrategy{},
		},
		cfg: cfg,
	}
}

// Score grades answers (question id to option key or number) against items
// in order. Answers for ids outside items are ignored. An error is returned
// only for a response no strategy can read.
func (e *Engine) Score(items []Item, answers map[string]any) (Result, error) {
	res := Result{Total: len(items), Questions: make([]QuestionResult, 0, len(items))}
	topics := newGroups()
	levels := newGroups()

	for _, it := range items {
		res.MaxScore += it.Marks
		resp := answers[it.QuestionID]
		qr := QuestionResult{QuestionID: it.QuestionID, Outcome: Unattempted, Answer: it.Answer}

		if !blank(resp) {
			qr.Response = resp
			ok, err := e.check(it, resp)
			if err != nil {
				return Result{}, err
			}
			if ok {
				qr.Outcome = Correct
				qr.Delta = it.Marks
			} else {
				qr.Outcome = Incorrect
				if e.cfg.negativeMarking {
					qr.Delta = -it.NegativeMarks
				}
			}
		}

		switch qr.Outcome {
		case Correct:
			res.Correct++
			res.Attempted++
		case Incorrect:
			res.Incorrect++
			res.Attempted++
		}
		res.Score += qr.Delta
		topics.add(it.Topic, qr.Outcome)
		levels.add(string(it.Difficulty), qr.Outcome)
		res.Questions = append(res.Questions, qr)
	}

	if res.Total > 0 {
		res.Accuracy = round2(clamp(float64(res.Correct)/float64(res.Total)*100, 0, 100))
	}
	if res.MaxScore > 0 {
		res.Percentile = round2(clamp(math.Max(0, res.Score)/res.MaxScore*100, 0, MaxPercentile))
	}
	res.ByTopic = topics.breakdowns(nil)
	res.ByDifficulty = levels.breakdowns(difficultyOrder)
	return res, nil
}

func (e *Engine) check(it Item, resp any) (bool, error) {
	s, ok := e.strategies[it.Type]
	if !ok {
		return false, nil
	}
	return s.Correct(it, resp)
}

type groups struct {
	order []string
	byKey map[string]*Breakdown
}

func newGroups() *groups { return &groups{byKey: map[string]*Breakdown{}} }

func (g *groups) add(key string, o Outcome) {
	b, ok := g.byKey[key]
	if !ok {
		b = &Breakdown{Key: key}
		g.byKey[key] = b
		g.order = append(g.order, key)
	}
	b.Total++
	if o != Unattempted {
		b.Attempted++
	}
	if o == Correct {
		b.Correct++
	}
}

func (g *groups) breakdowns(less func(a, b string) bool) []Breakdown {
	keys := append([]string(nil), g.order...)
	if less == nil {
		sort.Strings(keys)
	} else {
		sort.SliceStable(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	}
	out := make([]Breakdown, 0, len(keys))
	for _, k := range keys {
		b := *g.byKey[k]
		if b.Total > 0 {
			b.Accuracy = round2(float64(b.Correct) / float64(b.Total) * 100)
		}
		out = append(out, b)
	}
	return out
}

func difficultyOrder(a, b string) bool { return rank(a) < rank(b) }

func rank(d string) int {
	for i, x := range question.Difficulties {
		if string(x) == d {
			return i
		}
	}
	return len(question.Difficulties)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
