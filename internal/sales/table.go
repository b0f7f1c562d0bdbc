package sales

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Column names of the sales dataset.
const (
	ColProductID       = "product_id"
	ColLocal           = "local"
	ColDate            = "date"
	ColPlannedQuantity = "planned_quantity"
	ColActualQuantity  = "actual_quantity"
	ColActualPrice     = "actual_price"
	ColServiceLevel    = "service_level"
	ColPromotionType   = "promotion_type"
)

// Schema lists the columns the loader knows how to map onto a Record.
var Schema = []string{
	ColProductID, ColLocal, ColDate, ColPlannedQuantity,
	ColActualQuantity, ColActualPrice, ColServiceLevel, ColPromotionType,
}

// ErrInvalidColumn matches any *ColumnError via errors.Is.
var ErrInvalidColumn = errors.New("invalid column")

// ColumnError reports columns missing from (or unusable in) the table schema.
type ColumnError struct {
	Columns   []string
	Available []string
	Reason    string
}

func (e *ColumnError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "not in dataset schema"
	}
	msg := fmt.Sprintf("invalid column %s: %s", strings.Join(e.Columns, ", "), reason)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (available: %s)", strings.Join(e.Available, ", "))
	}
	return msg
}

func (e *ColumnError) Is(target error) bool { return target == ErrInvalidColumn }

// Record is one sales observation. It holds no references, so a copy is a deep copy.
// Missing numeric cells are NaN.
type Record struct {
	ProductID       string    `json:"product_id"`
	Local           string    `json:"local"`
	Date            time.Time `json:"date"`
	PlannedQuantity float64   `json:"planned_quantity"`
	ActualQuantity  float64   `json:"actual_quantity"`
	ActualPrice     float64   `json:"actual_price"`
	ServiceLevel    float64   `json:"service_level"`
	PromotionType   string    `json:"promotion_type,omitempty"`
}

// MarshalJSON writes missing numerics as null and the date as YYYY-MM-DD.
func (r Record) MarshalJSON() ([]byte, error) {
	num := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	date := ""
	if !r.Date.IsZero() {
		date = r.Date.Format("2006-01-02")
	}
	return json.Marshal(struct {
		ProductID       string   `json:"product_id"`
		Local           string   `json:"local"`
		Date            string   `json:"date"`
		PlannedQuantity *float64 `json:"planned_quantity"`
		ActualQuantity  *float64 `json:"actual_quantity"`
		ActualPrice     *float64 `json:"actual_price"`
		ServiceLevel    *float64 `json:"service_level"`
		PromotionType   string   `json:"promotion_type,omitempty"`
	}{r.ProductID, r.Local, date, num(r.PlannedQuantity), num(r.ActualQuantity), num(r.ActualPrice), num(r.ServiceLevel), r.PromotionType})
}

// HasPromotion reports whether the row belongs to the promoted segment.
func (r Record) HasPromotion() bool { return r.PromotionType != "" }

// Revenue returns actual_quantity * actual_price; ok is false when either is
// missing or the product overflows float64.
func (r Record) Revenue() (float64, bool) {
	if math.IsNaN(r.ActualQuantity) || math.IsNaN(r.ActualPrice) {
		return 0, false
	}
	v := r.ActualQuantity * r.ActualPrice
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Numeric returns the value of a numeric column. ok is false for unknown
// columns, missing cells and infinities.
func (r Record) Numeric(col string) (float64, bool) {
	var v float64
	switch col {
	case ColPlannedQuantity:
		v = r.PlannedQuantity
	case ColActualQuantity:
		v = r.ActualQuantity
	case ColActualPrice:
		v = r.ActualPrice
	case ColServiceLevel:
		v = r.ServiceLevel
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Text returns the grouping key for a dimension column.
func (r Record) Text(col string) (string, bool) {
	switch col {
	case ColProductID:
		return r.ProductID, true
	case ColLocal:
		return r.Local, true
	case ColPromotionType:
		return r.PromotionType, true
	case ColDate:
		if r.Date.IsZero() {
			return "", true
		}
		return r.Date.Format("2006-01-02"), true
	}
	return "", false
}

// IsNumericColumn reports whether col holds a numeric measure.
func IsNumericColumn(col string) bool {
	switch col {
	case ColPlannedQuantity, ColActualQuantity, ColActualPrice, ColServiceLevel:
		return true
	}
	return false
}

// IsDimensionColumn reports whether col can be used as a grouping key.
func IsDimensionColumn(col string) bool {
	switch col {
	case ColProductID, ColLocal, ColPromotionType, ColDate:
		return true
	}
	return false
}

// Table is an immutable snapshot of the dataset. Rows are only reachable
// through copies, so no caller can alter what another caller reads.
type Table struct {
	name     string
	columns  []string
	index    map[string]struct{}
	rows     []Record
	warnings []string
}

// NewTable builds a table from a header and rows. Both are copied.
func NewTable(columns []string, rows []Record) *Table {
	return newTable("", columns, rows, nil)
}

func newTable(name string, columns []string, rows []Record, warnings []string) *Table {
	t := &Table{
		name:     name,
		columns:  make([]string, 0, len(columns)),
		index:    make(map[string]struct{}, len(columns)),
		rows:     make([]Record, len(rows)),
		warnings: append([]string(nil), warnings...),
	}
	for _, c := range columns {
		c = normalizeHeader(c)
		if c == "" {
			continue
		}
		if _, dup := t.index[c]; dup {
			continue
		}
		t.index[c] = struct{}{}
		t.columns = append(t.columns, c)
	}
	copy(t.rows, rows)
	return t
}

// Name is the base name of the source file, if any.
func (t *Table) Name() string { return t.name }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns the header in source order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Has reports whether col is part of the schema.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Require fails with a *ColumnError naming every absent column.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ColumnError{Columns: missing, Available: t.Columns()}
}

// Rows returns a private copy of all rows.
func (t *Table) Rows() []Record {
	out := make([]Record, len(t.rows))
	copy(out, t.rows)
	return out
}

// Warnings lists notes recorded while loading.
func (t *Table) Warnings() []string { return append([]string(nil), t.warnings...) }

// DateRange returns the earliest and latest parsed dates; ok is false when
// the table has no valid date.
func (t *Table) DateRange() (first, last time.Time, ok bool) {
	for _, r := range t.rows {
		if r.Date.IsZero() {
			continue
		}
		if !ok || r.Date.Before(first) {
			first = r.Date
		}
		if !ok || r.Date.After(last) {
			last = r.Date
		}
		ok = true
	}
	return first, last, ok
}

// Distinct counts distinct non-empty values of a dimension column.
func (t *Table) Distinct(col string) int {
	seen := map[string]struct{}{}
	for _, r := range t.rows {
		v, ok := r.Text(col)
		if !ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.TrimSpace(s))
}
