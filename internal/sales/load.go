package sales

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Options controls dataset loading.
type Options struct {
	// Delimiter for CSV. If 0, ';' is used.
	Delimiter rune
	// Sheet selects the XLSX worksheet; empty means the first sheet.
	Sheet string
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// DefaultOptions returns the options used for the semicolon-separated export.
func DefaultOptions() Options {
	return Options{Delimiter: ';'}
}

// Load reads a dataset, dispatching on the file extension.
func Load(path string, opt Options) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, opt)
	default:
		return LoadCSV(path, opt)
	}
}

// LoadCSV reads a delimited file with a header row.
func LoadCSV(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, filepath.Base(path), opt)
}

// ReadCSV reads delimited data from r. name labels the resulting table.
func ReadCSV(r io.Reader, name string, opt Options) (*Table, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = ';'
	}
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return newTable(name, nil, nil, nil), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	b := newBuilder(header, opt)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		b.add(line, rec)
	}
	return b.table(name), nil
}

// LoadXLSX reads the selected worksheet; the first row is the header.
func LoadXLSX(path string, opt Options) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := opt.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx %s has no sheets", filepath.Base(path))
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	name := filepath.Base(path)
	if len(rows) == 0 {
		return newTable(name, nil, nil, nil), nil
	}
	b := newBuilder(rows[0], opt)
	for i, rec := range rows[1:] {
		b.add(i+2, rec)
	}
	return b.table(name), nil
}

// builder maps raw string rows onto Records.
type builder struct {
	opt      Options
	header   []string
	pos      map[string]int
	rows     []Record
	warnings []string
	badDates int
	badNums  int
	skipped  int
}

func newBuilder(header []string, opt Options) *builder {
	b := &builder{opt: opt, pos: map[string]int{}}
	for i, h := range header {
		name := normalizeHeader(h)
		b.header = append(b.header, name)
		if _, dup := b.pos[name]; !dup {
			b.pos[name] = i
		}
	}
	return b
}

func (b *builder) cell(rec []string, col string) (string, bool) {
	i, ok := b.pos[col]
	if !ok || i >= len(rec) {
		return "", false
	}
	return strings.TrimSpace(rec[i]), true
}

// add converts one row. Rows past MaxRows are only counted.
func (b *builder) add(line int, rec []string) {
	if b.opt.MaxRows > 0 && len(b.rows) >= b.opt.MaxRows {
		b.skipped++
		return
	}
	if isBlank(rec) {
		return
	}
	r := Record{
		PlannedQuantity: math.NaN(),
		ActualQuantity:  math.NaN(),
		ActualPrice:     math.NaN(),
		ServiceLevel:    math.NaN(),
	}
	r.ProductID, _ = b.cell(rec, ColProductID)
	r.Local, _ = b.cell(rec, ColLocal)
	if v, _ := b.cell(rec, ColPromotionType); !isNullToken(v) {
		r.PromotionType = v
	}
	if v, ok := b.cell(rec, ColDate); ok && v != "" {
		if d, ok := ParseDate(v); ok {
			r.Date = d
		} else if d, ok := excelSerialDate(v); ok {
			r.Date = d
		} else {
			b.badDates++
			if b.badDates <= 3 {
				b.warnings = append(b.warnings, fmt.Sprintf("row %d: unparseable date %q", line, v))
			}
		}
	}
	for _, col := range []string{ColPlannedQuantity, ColActualQuantity, ColActualPrice, ColServiceLevel} {
		v, ok := b.cell(rec, col)
		if !ok || isNullToken(v) {
			continue
		}
		x, ok := parseNumeric(v, b.opt)
		if !ok {
			b.badNums++
			if b.badNums <= 3 {
				b.warnings = append(b.warnings, fmt.Sprintf("row %d: non-numeric %s %q treated as missing", line, col, v))
			}
			continue
		}
		switch col {
		case ColPlannedQuantity:
			r.PlannedQuantity = x
		case ColActualQuantity:
			r.ActualQuantity = x
		case ColActualPrice:
			r.ActualPrice = x
		case ColServiceLevel:
			r.ServiceLevel = x
		}
	}
	b.rows = append(b.rows, r)
}

func (b *builder) table(name string) *Table {
	w := b.warnings
	if b.badDates > 3 {
		w = append(w, fmt.Sprintf("%d rows with unparseable dates in total", b.badDates))
	}
	if b.badNums > 3 {
		w = append(w, fmt.Sprintf("%d non-numeric cells in total", b.badNums))
	}
	if b.skipped > 0 {
		w = append(w, fmt.Sprintf("loaded only %d rows due to MaxRows (%d skipped)", len(b.rows), b.skipped))
	}
	return newTable(name, b.header, b.rows, w)
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func isNullToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none", "na", "n/a":
		return true
	}
	return false
}

var dateLayouts = []string{
	"02/01/2006", "2/1/2006", "02-01-2006", "02.01.2006",
	"2006-01-02", "2006/01/02", time.RFC3339,
	"2006-01-02 15:04:05", "02/01/2006 15:04", "02/01/2006 15:04:05",
}

// ParseDate parses a calendar date, day-first layouts taking precedence.
// The result is truncated to midnight UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func excelSerialDate(s string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		if cpos >= 0 && dpos >= 0 {
			if cpos > dpos {
				dec = ','
				thou = '.'
			} else {
				dec = '.'
				thou = ','
			}
		} else if cpos >= 0 {
			dec = ','
		} else {
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
