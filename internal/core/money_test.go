package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{" 2.50 ", 250, true},
		{"-3.10", -310, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1000000000000000", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !IsValidation(err) {
				t.Fatalf("%q expected a validation error, got %T", tc.in, err)
			}
		}
	}
}

func TestParseMoneyExact(t *testing.T) {
	m, err := ParseMoneyExact("450.10")
	require.NoError(t, err)
	assert.Equal(t, int64(45010), m.Cents)

	m, err = ParseMoneyExact("450.100")
	require.NoError(t, err, "trailing zeros do not add precision")
	assert.Equal(t, int64(45010), m.Cents)

	_, err = ParseMoneyExact("450.105")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestMoneyArithmetic(t *testing.T) {
	a, b := NewMoney(45000), NewMoney(32000)

	assert.Equal(t, NewMoney(77000), a.Add(b))
	assert.Equal(t, NewMoney(13000), a.Sub(b))
	assert.Equal(t, NewMoney(-13000), b.Sub(a))
	assert.Equal(t, Money{}, b.Sub(a).ClampZero())
	assert.Equal(t, a, MaxMoney(a, b))
	assert.Equal(t, b, MinMoney(a, b))
	assert.Equal(t, NewMoney(77000), SumMoney(a, b))
	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, -1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(a))
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "0.00", Money{}.String())
	assert.Equal(t, "450.00", NewMoney(45000).String())
	assert.Equal(t, "0.05", NewMoney(5).String())
	assert.Equal(t, "-12.30", NewMoney(-1230).String())
}

func TestMoneyJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{NewMoney(1050)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"10.50"}`, string(out))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.34","b":7.5}`), &in))
	assert.Equal(t, int64(1234), in.A.Cents)
	assert.Equal(t, int64(750), in.B.Cents)

	err = json.Unmarshal([]byte(`{"a":"1.234"}`), &in)
	require.Error(t, err)
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{}).Validate(); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if err := (Money{Cents: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}
