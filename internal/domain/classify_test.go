package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		name  string
		price *float64
		oi    *float64
		state State
		lean  Lean
	}{
		{"longs opening", Float64Ptr(0.4), Float64Ptr(0.2), StateLongsOpening, LeanLong},
		{"shorts opening", Float64Ptr(-0.4), Float64Ptr(0.2), StateShortsOpening, LeanShort},
		{"shorts closing", Float64Ptr(0.4), Float64Ptr(-0.2), StateShortsClosing, LeanLong},
		{"shorts closing oi flat", Float64Ptr(0.4), Float64Ptr(0), StateShortsClosing, LeanLong},
		{"longs closing", Float64Ptr(-0.4), Float64Ptr(0), StateLongsClosing, LeanShort},
		{"price nil", nil, Float64Ptr(1), StateUnknown, LeanNeutral},
		{"oi nil", Float64Ptr(1), nil, StateUnknown, LeanNeutral},
		{"price flat", Float64Ptr(0), Float64Ptr(1), StateUnknown, LeanNeutral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state, lean := Classify(tc.price, tc.oi)
			assert.Equal(t, tc.state, state)
			assert.Equal(t, tc.lean, lean)
		})
	}
}

func TestLeanOpposite(t *testing.T) {
	assert.Equal(t, LeanShort, LeanLong.Opposite())
	assert.Equal(t, LeanLong, LeanShort.Opposite())
	assert.Equal(t, LeanNeutral, LeanNeutral.Opposite())
}
