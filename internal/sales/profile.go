package sales

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"` // numeric|datetime|categorical|unknown
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	Unique  int    `json:"unique,omitempty"`
	// Numeric stats
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Std  float64 `json:"std,omitempty"`
	// Datetime bounds, YYYY-MM-DD
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
	// Categorical top values
	TopValues []CategoryCount `json:"top_values,omitempty"`
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Profile is a compact description of a loaded table. It never carries rows.
type Profile struct {
	Name     string          `json:"name,omitempty"`
	Rows     int             `json:"rows"`
	Cols     []ColumnSummary `json:"columns"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Describe profiles every column of the table schema.
func Describe(t *Table) *Profile {
	p := &Profile{Name: t.Name(), Rows: t.Len(), Warnings: t.Warnings()}
	for _, col := range t.Columns() {
		p.Cols = append(p.Cols, summarize(t, col))
	}
	return p
}

func summarize(t *Table, col string) ColumnSummary {
	s := ColumnSummary{Name: col, Kind: "unknown"}
	switch {
	case IsNumericColumn(col):
		s.Kind = "numeric"
		// Welford
		var n int
		var mean, m2 float64
		s.Min, s.Max = math.Inf(1), math.Inf(-1)
		for _, r := range t.rows {
			x, ok := r.Numeric(col)
			if !ok {
				s.Missing++
				continue
			}
			n++
			if x < s.Min {
				s.Min = x
			}
			if x > s.Max {
				s.Max = x
			}
			delta := x - mean
			mean += delta / float64(n)
			m2 += delta * (x - mean)
		}
		s.NonNull = n
		s.Mean = mean
		if n > 1 {
			s.Std = math.Sqrt(m2 / float64(n-1))
		}
		if n == 0 {
			s.Min, s.Max = 0, 0
		}
	case col == ColDate:
		s.Kind = "datetime"
		for _, r := range t.rows {
			if r.Date.IsZero() {
				s.Missing++
				continue
			}
			s.NonNull++
		}
		if first, last, ok := t.DateRange(); ok {
			s.First = first.Format("2006-01-02")
			s.Last = last.Format("2006-01-02")
		}
	case IsDimensionColumn(col):
		s.Kind = "categorical"
		cats := map[string]int{}
		for _, r := range t.rows {
			v, _ := r.Text(col)
			if v == "" {
				s.Missing++
				continue
			}
			s.NonNull++
			cats[v]++
		}
		tops := make([]CategoryCount, 0, len(cats))
		for k, v := range cats {
			tops = append(tops, CategoryCount{Value: k, Count: v})
		}
		sort.Slice(tops, func(i, j int) bool {
			if tops[i].Count == tops[j].Count {
				return tops[i].Value < tops[j].Value
			}
			return tops[i].Count > tops[j].Count
		})
		if len(tops) > 8 {
			tops = tops[:8]
		}
		s.TopValues = tops
		s.Unique = len(cats)
	}
	return s
}

// Markdown renders the profile for prompts or the describe command.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(p.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", c.Name, c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf(", min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		case "datetime":
			if c.First != "" {
				b.WriteString(fmt.Sprintf(", from %s to %s", c.First, c.Last))
			}
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString(", top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range p.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
