// Package sampler selects questions for a test instance. Selection is a pure
// function of the target count, the difficulty weights, the candidate pools
// and a seed string.
package sampler

import (
	"errors"
	"math"
	"sort"

	"github.com/mind-engage/examprep/internal/question"
)

// Weights is a difficulty distribution. Only the ratios matter.
type Weights struct {
	Easy   float64 `json:"easy"`
	Medium float64 `json:"medium"`
	Hard   float64 `json:"hard"`
}

var (
	ErrNegativeWeight = errors.New("difficulty weights must be non-negative")
	ErrZeroWeights    = errors.New("difficulty weights must not all be zero")
)

func (w Weights) Validate() error {
	for _, v := range []float64{w.Easy, w.Medium, w.Hard} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNegativeWeight
		}
	}
	if w.Easy+w.Medium+w.Hard == 0 {
		return ErrZeroWeights
	}
	return nil
}

// Pools holds published candidate ids per difficulty.
type Pools struct {
	Easy   []string
	Medium []string
	Hard   []string
}

func (p Pools) Len() int { return len(p.Easy) + len(p.Medium) + len(p.Hard) }

func (p Pools) band(d question.Difficulty) []string {
	switch d {
	case question.Easy:
		return p.Easy
	case question.Medium:
		return p.Medium
	default:
		return p.Hard
	}
}

// Quota is the per-difficulty target before carry-over.
type Quota struct {
	Easy   int `json:"easy"`
	Medium int `json:"medium"`
	Hard   int `json:"hard"`
}

func (q Quota) band(d question.Difficulty) int {
	switch d {
	case question.Easy:
		return q.Easy
	case question.Medium:
		return q.Medium
	default:
		return q.Hard
	}
}

// Quotas splits n by weight. Easy and medium are floored; hard absorbs the
// remainder so the three always sum to n.
func Quotas(n int, w Weights) (Quota, error) {
	if err := w.Validate(); err != nil {
		return Quota{}, err
	}
	if n <= 0 {
		return Quota{}, nil
	}
	total := w.Easy + w.Medium + w.Hard
	e := int(math.Floor(float64(n) * w.Easy / total))
	m := int(math.Floor(float64(n) * w.Medium / total))
	return Quota{Easy: e, Medium: m, Hard: n - e - m}, nil
}

// Selection is the ordered output of Sample.
type Selection struct {
	IDs    []string `json:"ids"`
	Quota  Quota    `json:"quota"`
	Drawn  Quota    `json:"drawn"`
	Filled int      `json:"filled_from_fallback"`
}

const fallbackStream = "fallback"

// Sample draws exactly min(n, pools.Len()) unique ids. Pools are drawn easy,
// medium, hard; an unmet quota carries into the next band, and any remaining
// gap is filled from a shuffled union of all pools.
func Sample(n int, w Weights, pools Pools, seed string) (Selection, error) {
	quota, err := Quotas(n, w)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Quota: quota, IDs: []string{}}
	if n <= 0 || pools.Len() == 0 {
		return sel, nil
	}

	seen := make(map[string]bool, n)
	take := func(ids []string, want int) int {
		got := 0
		for _, id := range ids {
			if got >= want || len(sel.IDs) >= n {
				break
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			sel.IDs = append(sel.IDs, id)
			got++
		}
		return got
	}

	carry := 0
	drawn := map[question.Difficulty]int{}
	for _, d := range question.Difficulties {
		want := quota.band(d) + carry
		got := take(shuffle(sorted(pools.band(d)), seed, string(d)), want)
		drawn[d] = got
		carry = want - got
	}
	sel.Drawn = Quota{Easy: drawn[question.Easy], Medium: drawn[question.Medium], Hard: drawn[question.Hard]}

	if len(sel.IDs) < n {
		union := make([]string, 0, pools.Len())
		union = append(union, pools.Easy...)
		union = append(union, pools.Medium...)
		union = append(union, pools.Hard...)
		sel.Filled = take(shuffle(sorted(union), seed, fallbackStream), n-len(sel.IDs))
	}
	return sel, nil
}

func sorted(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
