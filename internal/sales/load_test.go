package sales

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

var csvRows = []string{
	"product_id;local;date;planned_quantity;actual_quantity;actual_price;service_level;promotion_type",
	"P1;SP;01/03/2024;100;80;10,50;0,97;",
	"P1;RJ;02/03/2024;0;50;1.234,5;0,80;BLACK",
	"P2;SP;15/03/2024;50;55;;0,99;nan",
	"P3;MG;31/02/2024;10;abc;2;0,90;",
}

func writeCSV(t *testing.T, rows []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(strings.Join(rows, "\n")), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadCSVDayFirstAndLocaleNumbers(t *testing.T) {
	tbl, err := Load(writeCSV(t, csvRows), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Name() != "sales.csv" {
		t.Fatalf("name = %q", tbl.Name())
	}
	if tbl.Len() != 4 {
		t.Fatalf("rows = %d, want 4", tbl.Len())
	}
	rows := tbl.Rows()
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !rows[0].Date.Equal(want) {
		t.Fatalf("date = %v, want %v", rows[0].Date, want)
	}
	if rows[0].ActualPrice != 10.5 || rows[0].ServiceLevel != 0.97 {
		t.Fatalf("row 0 numerics = %+v", rows[0])
	}
	if rows[1].ActualPrice != 1234.5 {
		t.Fatalf("thousands separator not handled: %v", rows[1].ActualPrice)
	}
	if rows[1].PromotionType != "BLACK" || !rows[1].HasPromotion() {
		t.Fatalf("promotion = %q", rows[1].PromotionType)
	}
	if rows[2].HasPromotion() {
		t.Fatalf("nan promotion should be treated as no promotion")
	}
	if !math.IsNaN(rows[2].ActualPrice) {
		t.Fatalf("missing price should be NaN, got %v", rows[2].ActualPrice)
	}
	if _, ok := rows[2].Revenue(); ok {
		t.Fatalf("revenue must not be computable without a price")
	}
	if !rows[3].Date.IsZero() || !math.IsNaN(rows[3].ActualQuantity) {
		t.Fatalf("invalid cells should be zero date / NaN: %+v", rows[3])
	}
	if len(tbl.Warnings()) != 2 {
		t.Fatalf("warnings = %#v", tbl.Warnings())
	}
}

func TestRevenueAndNumericRejectInfinity(t *testing.T) {
	r := Record{ActualQuantity: 1e200, ActualPrice: 1e200}
	if v, ok := r.Revenue(); ok {
		t.Fatalf("overflowing revenue should not be computable, got %v", v)
	}
	r = Record{ActualQuantity: math.Inf(1), ActualPrice: 2}
	if _, ok := r.Numeric(ColActualQuantity); ok {
		t.Fatalf("infinite quantity should not be numeric")
	}
	r = Record{ActualQuantity: 3, ActualPrice: 2}
	if v, ok := r.Revenue(); !ok || v != 6 {
		t.Fatalf("revenue = %v, %v", v, ok)
	}
}

func TestRowsReturnsPrivateCopy(t *testing.T) {
	tbl, err := Load(writeCSV(t, csvRows), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	rows := tbl.Rows()
	rows[0].ActualQuantity = -1
	rows[0].ProductID = "mutated"
	again := tbl.Rows()
	if again[0].ActualQuantity != 80 || again[0].ProductID != "P1" {
		t.Fatalf("table was mutated through Rows(): %+v", again[0])
	}
}

func TestRequireReportsMissingColumns(t *testing.T) {
	tbl := NewTable([]string{"Product_ID", " local "}, nil)
	if !tbl.Has(ColProductID) || !tbl.Has(ColLocal) {
		t.Fatalf("headers not normalized: %v", tbl.Columns())
	}
	err := tbl.Require(ColProductID, ColActualPrice, ColServiceLevel)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrInvalidColumn) {
		t.Fatalf("expected ErrInvalidColumn, got %v", err)
	}
	var ce *ColumnError
	if !errors.As(err, &ce) || len(ce.Columns) != 2 {
		t.Fatalf("unexpected column error: %#v", err)
	}
	if !strings.Contains(err.Error(), "actual_price, service_level") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestLoadXLSXFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	data := [][]any{
		{"product_id", "local", "date", "planned_quantity", "actual_quantity", "actual_price", "service_level", "promotion_type"},
		{"A", "SP", "05/01/2024", 10, 12, 2.5, 0.95, ""},
		{"B", "RJ", "2024-01-06", 20, 18, 3, 0.9, "LEVE3"},
	}
	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	path := filepath.Join(t.TempDir(), "sales.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}

	tbl, err := Load(path, DefaultOptions())
	if err != nil {
		t.Fatalf("Load xlsx: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	rows := tbl.Rows()
	if rows[0].Date.Day() != 5 || rows[0].Date.Month() != time.January {
		t.Fatalf("day-first date not honored: %v", rows[0].Date)
	}
	if rows[1].PromotionType != "LEVE3" || rows[1].ActualPrice != 3 {
		t.Fatalf("row 1 = %+v", rows[1])
	}

	if _, err := LoadXLSX(path, Options{Sheet: "Missing"}); err == nil {
		t.Fatalf("expected error for unknown sheet")
	}
}

func TestMaxRowsAddsNote(t *testing.T) {
	opt := DefaultOptions()
	opt.MaxRows = 2
	tbl, err := Load(writeCSV(t, csvRows), opt)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want 2", tbl.Len())
	}
	w := tbl.Warnings()
	if len(w) == 0 || !strings.Contains(w[len(w)-1], "loaded only 2 rows") {
		t.Fatalf("warnings = %#v", w)
	}
}

func TestDescribeMarkdown(t *testing.T) {
	tbl, err := Load(writeCSV(t, csvRows), DefaultOptions())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	md := Describe(tbl).Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: sales.csv",
		"Rows: 4",
		"- date: datetime (non-null 3, missing 25.0%), from 2024-03-01 to 2024-03-15",
		"- product_id: categorical",
		"P1(2)",
		"- actual_price: numeric (non-null 3, missing 25.0%)",
		"[NOTES]",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}
