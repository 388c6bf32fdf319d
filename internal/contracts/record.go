package contracts

import "math"

// Column identifies one CSV column of a credit batch
// ⭐ SSOT: 컬럼 이름과 순서는 여기서만 정의
type Column int

const (
	ColID Column = iota
	ColLimitBal
	ColSex
	ColEducation
	ColMarriage
	ColAge
	ColPay0
	ColPay2
	ColPay3
	ColPay4
	ColPay5
	ColPay6
	ColBillAmt1
	ColBillAmt2
	ColBillAmt3
	ColBillAmt4
	ColBillAmt5
	ColBillAmt6
	ColPayAmt1
	ColPayAmt2
	ColPayAmt3
	ColPayAmt4
	ColPayAmt5
	ColPayAmt6
	ColDefault

	// Derived by feature engineering
	ColPayWeight
	ColAgeBinned
	ColBillTotal
	ColPayTotal
	ColPayRatio

	numColumns
)

// TargetColumn is the label column name
const TargetColumn = "default.payment.next.month"

var columnNames = [numColumns]string{
	"ID", "LIMIT_BAL", "SEX", "EDUCATION", "MARRIAGE", "AGE",
	"PAY_0", "PAY_2", "PAY_3", "PAY_4", "PAY_5", "PAY_6",
	"BILL_AMT1", "BILL_AMT2", "BILL_AMT3", "BILL_AMT4", "BILL_AMT5", "BILL_AMT6",
	"PAY_AMT1", "PAY_AMT2", "PAY_AMT3", "PAY_AMT4", "PAY_AMT5", "PAY_AMT6",
	TargetColumn,
	"PAY_WEIGHT", "AGE_BINNED", "BILL_TOTAL", "PAY_TOTAL", "PAY_RATIO",
}

// PayColumns are the six payment-status columns in order
var PayColumns = [6]Column{ColPay0, ColPay2, ColPay3, ColPay4, ColPay5, ColPay6}

// BillAmtColumns are the six bill-amount columns in order
var BillAmtColumns = [6]Column{ColBillAmt1, ColBillAmt2, ColBillAmt3, ColBillAmt4, ColBillAmt5, ColBillAmt6}

// PayAmtColumns are the six payment-amount columns in order
var PayAmtColumns = [6]Column{ColPayAmt1, ColPayAmt2, ColPayAmt3, ColPayAmt4, ColPayAmt5, ColPayAmt6}

// String returns the CSV header name of the column
func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return "UNKNOWN"
	}
	return columnNames[c]
}

// IsInteger reports whether the column holds integer codes
func (c Column) IsInteger() bool {
	switch c {
	case ColLimitBal, ColBillTotal, ColPayTotal, ColPayRatio:
		return false
	}
	if c >= ColBillAmt1 && c <= ColPayAmt6 {
		return false
	}
	return c >= 0 && c < numColumns
}

// ParseColumn resolves a header name
func ParseColumn(name string) (Column, bool) {
	for i, n := range columnNames {
		if n == name {
			return Column(i), true
		}
	}
	return 0, false
}

// RawColumns lists the columns of a raw or prepared batch in file order
func RawColumns() []Column {
	cols := make([]Column, 0, ColDefault+1)
	for c := ColID; c <= ColDefault; c++ {
		cols = append(cols, c)
	}
	return cols
}

// EngineeringColumns lists the raw columns feature engineering needs.
// The label and demographic columns are optional for a scoring batch.
func EngineeringColumns() []Column {
	cols := []Column{ColID, ColAge}
	cols = append(cols, PayColumns[:]...)
	cols = append(cols, BillAmtColumns[:]...)
	return append(cols, PayAmtColumns[:]...)
}

// FeatureColumns lists the columns of a feature-engineered batch in file order.
// ID and AGE are absent.
func FeatureColumns() []Column {
	cols := make([]Column, 0, numColumns-2)
	for c := ColLimitBal; c < numColumns; c++ {
		if c == ColAge {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// ModelInputColumns lists the feature columns fed to a classifier (no label)
func ModelInputColumns() []Column {
	cols := make([]Column, 0, numColumns-3)
	for _, c := range FeatureColumns() {
		if c != ColDefault {
			cols = append(cols, c)
		}
	}
	return cols
}

// Names converts columns to header names
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.String()
	}
	return names
}

// ColumnSet is a bitmask of columns
type ColumnSet uint64

// Has reports whether c is in the set
func (s ColumnSet) Has(c Column) bool {
	return s&(1<<uint(c)) != 0
}

// With returns the set plus c
func (s ColumnSet) With(c Column) ColumnSet {
	return s | 1<<uint(c)
}

// Without returns the set minus c
func (s ColumnSet) Without(c Column) ColumnSet {
	return s &^ (1 << uint(c))
}

// Record is one credit-card account row.
// A missing cell keeps the zero value and is flagged in Missing, so two
// records with the same cells compare equal with ==.
type Record struct {
	ID        int64
	LimitBal  float64
	Sex       int
	Education int
	Marriage  int
	Age       int
	Pay       [6]int     // PAY_0, PAY_2..PAY_6
	BillAmt   [6]float64 // BILL_AMT1..6
	PayAmt    [6]float64 // PAY_AMT1..6
	Default   int
	Missing   ColumnSet
}

// IsMissing reports whether the cell of column c is missing
func (r *Record) IsMissing(c Column) bool {
	return r.Missing.Has(c)
}

// Value returns the numeric value of column c and whether it is present
func (r *Record) Value(c Column) (float64, bool) {
	if r.Missing.Has(c) {
		return math.NaN(), false
	}
	switch {
	case c == ColID:
		return float64(r.ID), true
	case c == ColLimitBal:
		return r.LimitBal, true
	case c == ColSex:
		return float64(r.Sex), true
	case c == ColEducation:
		return float64(r.Education), true
	case c == ColMarriage:
		return float64(r.Marriage), true
	case c == ColAge:
		return float64(r.Age), true
	case c >= ColPay0 && c <= ColPay6:
		return float64(r.Pay[c-ColPay0]), true
	case c >= ColBillAmt1 && c <= ColBillAmt6:
		return r.BillAmt[c-ColBillAmt1], true
	case c >= ColPayAmt1 && c <= ColPayAmt6:
		return r.PayAmt[c-ColPayAmt1], true
	case c == ColDefault:
		return float64(r.Default), true
	}
	return math.NaN(), false
}

// Set stores v into column c. NaN marks the cell missing.
// Integer columns are truncated toward zero.
func (r *Record) Set(c Column, v float64) {
	if math.IsNaN(v) {
		r.SetMissing(c)
		return
	}
	r.Missing = r.Missing.Without(c)
	switch {
	case c == ColID:
		r.ID = int64(v)
	case c == ColLimitBal:
		r.LimitBal = v
	case c == ColSex:
		r.Sex = int(v)
	case c == ColEducation:
		r.Education = int(v)
	case c == ColMarriage:
		r.Marriage = int(v)
	case c == ColAge:
		r.Age = int(v)
	case c >= ColPay0 && c <= ColPay6:
		r.Pay[c-ColPay0] = int(v)
	case c >= ColBillAmt1 && c <= ColBillAmt6:
		r.BillAmt[c-ColBillAmt1] = v
	case c >= ColPayAmt1 && c <= ColPayAmt6:
		r.PayAmt[c-ColPayAmt1] = v
	case c == ColDefault:
		r.Default = int(v)
	}
}

// SetMissing clears column c to its zero value and flags it missing
func (r *Record) SetMissing(c Column) {
	r.Set(c, 0)
	r.Missing = r.Missing.With(c)
}

// FeatureRecord is a record after feature engineering.
// It carries no ID and no AGE.
type FeatureRecord struct {
	LimitBal  float64
	Sex       int
	Education int
	Marriage  int
	Pay       [6]int
	BillAmt   [6]float64
	PayAmt    [6]float64
	Default   int

	PayWeight int
	AgeBinned int
	BillTotal float64
	PayTotal  float64
	PayRatio  float64

	Missing ColumnSet
}

// Value returns the numeric value of column c and whether it is present
func (f *FeatureRecord) Value(c Column) (float64, bool) {
	if f.Missing.Has(c) {
		return math.NaN(), false
	}
	switch {
	case c == ColLimitBal:
		return f.LimitBal, true
	case c == ColSex:
		return float64(f.Sex), true
	case c == ColEducation:
		return float64(f.Education), true
	case c == ColMarriage:
		return float64(f.Marriage), true
	case c >= ColPay0 && c <= ColPay6:
		return float64(f.Pay[c-ColPay0]), true
	case c >= ColBillAmt1 && c <= ColBillAmt6:
		return f.BillAmt[c-ColBillAmt1], true
	case c >= ColPayAmt1 && c <= ColPayAmt6:
		return f.PayAmt[c-ColPayAmt1], true
	case c == ColDefault:
		return float64(f.Default), true
	case c == ColPayWeight:
		return float64(f.PayWeight), true
	case c == ColAgeBinned:
		return float64(f.AgeBinned), true
	case c == ColBillTotal:
		return f.BillTotal, true
	case c == ColPayTotal:
		return f.PayTotal, true
	case c == ColPayRatio:
		return f.PayRatio, true
	}
	return math.NaN(), false
}

// Set stores v into column c. NaN marks the cell missing.
func (f *FeatureRecord) Set(c Column, v float64) {
	if math.IsNaN(v) {
		f.Set(c, 0)
		f.Missing = f.Missing.With(c)
		return
	}
	f.Missing = f.Missing.Without(c)
	switch {
	case c == ColLimitBal:
		f.LimitBal = v
	case c == ColSex:
		f.Sex = int(v)
	case c == ColEducation:
		f.Education = int(v)
	case c == ColMarriage:
		f.Marriage = int(v)
	case c >= ColPay0 && c <= ColPay6:
		f.Pay[c-ColPay0] = int(v)
	case c >= ColBillAmt1 && c <= ColBillAmt6:
		f.BillAmt[c-ColBillAmt1] = v
	case c >= ColPayAmt1 && c <= ColPayAmt6:
		f.PayAmt[c-ColPayAmt1] = v
	case c == ColDefault:
		f.Default = int(v)
	case c == ColPayWeight:
		f.PayWeight = int(v)
	case c == ColAgeBinned:
		f.AgeBinned = int(v)
	case c == ColBillTotal:
		f.BillTotal = v
	case c == ColPayTotal:
		f.PayTotal = v
	case c == ColPayRatio:
		f.PayRatio = v
	}
}

// InputVector returns the model input columns in ModelInputColumns order.
// Missing cells are NaN.
func (f *FeatureRecord) InputVector() []float64 {
	cols := ModelInputColumns()
	out := make([]float64, len(cols))
	for i, c := range cols {
		out[i], _ = f.Value(c)
	}
	return out
}
