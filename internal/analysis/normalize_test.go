package analysis

import (
	"math"
	"strconv"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"1.5万円", 15000},
		{"（1,200）", -1200},
		{"(1,200)", -1200},
		{"－500", -500},
		{"---5", -5},
		{"−−5", 5},
		{"2億", 2e8},
		{"3千", 3000},
		{"-2万", -20000},
		{"1万2000", 12000},
		{"1万2000円", 12000},
		{"1億2000万", 1.2e8},
		{"2千500", 2500},
		{"1万ほど", 0},
		{"3kg", 0},
		{"-1.5E-05", -1.5e-05},
		{"--1e-3", 1e-3},
		{"500円", 500},
		{"¥1,234", 1234},
		{"￥1,234,567", 1234567},
		{"$ 99.5", 99.5},
		{"12k", 12000},
		{"1.5M", 1.5e6},
		{"１２３", 123},
		{"1 234", 1234},
		{"△100", -100},
		{"▲2,500", -2500},
		{"  42  ", 42},
		{"5km", 0},
		{"abc", 0},
		{"", 0},
		{nil, 0},
		{true, 0},
		{float64(7), 7},
		{int64(-3), -3},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%#v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseNumberFlag(t *testing.T) {
	tests := []struct {
		in     any
		wantOK bool
	}{
		{"0", true},
		{0.0, true},
		{"1,000", true},
		{"", false},
		{"n/a", false},
		{nil, false},
		{"12%", false},
		{"1万ほど", false},
		{"1万2000", true},
	}
	for _, tc := range tests {
		if _, ok := ParseNumber(tc.in); ok != tc.wantOK {
			t.Errorf("ParseNumber(%#v) ok = %v, want %v", tc.in, ok, tc.wantOK)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	values := []float64{0, 1, -1, 123.45, -123.45, 0.001, 1e6, -98765.4321, 15000}
	for _, n := range values {
		if got := Normalize(n); got != n {
			t.Errorf("Normalize(%v) = %v", n, got)
		}
		s := strconv.FormatFloat(n, 'f', -1, 64)
		if got := Normalize(s); got != n {
			t.Errorf("Normalize(%q) = %v, want %v", s, got, n)
		}
		if got := Normalize(Normalize(s)); got != n {
			t.Errorf("Normalize twice %q = %v, want %v", s, got, n)
		}
	}

	// Shortest formatting switches to exponent notation for very small and
	// very large magnitudes.
	exponents := []float64{-1e-07, -2.5e-10, 1e-07, 3.2e-12, 1e+21, -1e+21}
	for _, n := range exponents {
		s := strconv.FormatFloat(n, 'g', -1, 64)
		if got := Normalize(s); got != n {
			t.Errorf("Normalize(%q) = %v, want %v", s, got, n)
		}
	}
}
