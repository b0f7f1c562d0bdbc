package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// RankEntry is one key of an ordered ranking.
type RankEntry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Ranking is ordered by value; ties keep first-appearance order.
type Ranking []RankEntry

// Keys returns the ranked keys in order.
func (r Ranking) Keys() []string {
	out := make([]string, len(r))
	for i, e := range r {
		out[i] = e.Key
	}
	return out
}

// summer accumulates decimal sums per key, remembering first appearance.
type summer struct {
	order []string
	sums  map[string]decimal.Decimal
}

func newSummer() *summer { return &summer{sums: map[string]decimal.Decimal{}} }

// touch registers key without adding to it.
func (s *summer) touch(key string) {
	if _, ok := s.sums[key]; !ok {
		s.order = append(s.order, key)
		s.sums[key] = decimal.Zero
	}
}

func (s *summer) add(key string, v float64) {
	s.touch(key)
	if !finite(v) {
		return
	}
	s.sums[key] = s.sums[key].Add(decimal.NewFromFloat(v))
}

// finite reports whether v can be converted to a decimal.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ranking returns the sums in first-appearance order.
func (s *summer) ranking() Ranking {
	out := make(Ranking, 0, len(s.order))
	for _, k := range s.order {
		f, _ := s.sums[k].Float64()
		out = append(out, RankEntry{Key: k, Value: f})
	}
	return out
}

// sortDesc sorts strictly descending, ties by original order, and caps at n (n < 0: no cap).
func sortDesc(r Ranking, n int) Ranking {
	sort.SliceStable(r, func(i, j int) bool { return r[i].Value > r[j].Value })
	return capAt(r, n)
}

func capAt(r Ranking, n int) Ranking {
	if n >= 0 && len(r) > n {
		return r[:n]
	}
	return r
}

// mean accumulates a skip-missing arithmetic mean.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	if !finite(v) {
		return
	}
	m.sum += v
	m.n++
}

func (m mean) value() Value {
	if m.n == 0 {
		return NotComputable
	}
	return Computed(m.sum / float64(m.n))
}
