package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a numeric result that may be not computable, e.g. a ratio whose
// denominator is zero or missing. The zero Value is NotComputable; it is
// never reported as 0 or infinity.
type Value struct {
	v  float64
	ok bool
}

// NotComputable marks a result with no meaningful numeric value.
var NotComputable = Value{}

// Computed wraps v. NaN and infinities become NotComputable.
func Computed(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NotComputable
	}
	return Value{v: v, ok: true}
}

// Ratio returns num/den, or NotComputable when den is zero or either side is missing.
func Ratio(num, den float64) Value {
	if den == 0 || math.IsNaN(den) || math.IsNaN(num) {
		return NotComputable
	}
	return Computed(num / den)
}

// PctChange returns (x-base)/base*100, or NotComputable when base is zero or absent.
func PctChange(x, base Value) Value {
	xv, ok1 := x.Float()
	bv, ok2 := base.Float()
	if !ok1 || !ok2 || bv == 0 {
		return NotComputable
	}
	return Computed((xv - bv) / bv * 100)
}

// Float returns the value and whether it is computable.
func (v Value) Float() (float64, bool) { return v.v, v.ok }

func (v Value) IsComputable() bool { return v.ok }

// Or returns the value or def when not computable.
func (v Value) Or(def float64) float64 {
	if !v.ok {
		return def
	}
	return v.v
}

func (v Value) String() string {
	if !v.ok {
		return "n/c"
	}
	return FormatNumber(v.v)
}

// Fixed formats with prec decimals, or "n/c".
func (v Value) Fixed(prec int) string {
	if !v.ok {
		return "n/c"
	}
	return strconv.FormatFloat(v.v, 'f', prec, 64)
}

// Percent formats as "12.34%", or "n/c".
func (v Value) Percent() string {
	if !v.ok {
		return "n/c"
	}
	return fmt.Sprintf("%.2f%%", v.v)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.ok {
		return []byte("null"), nil
	}
	return json.Marshal(v.v)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = NotComputable
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Computed(f)
	return nil
}

// FormatNumber renders a float with up to four decimals and no trailing zeros.
func FormatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}
