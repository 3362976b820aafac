package utils

import "testing"

func TestRoundToTwo(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		// 1.005 and 1.015 sit just below their decimal value in float64,
		// so scaling by 100 lands under the .5 boundary and rounds down.
		{1.005, 1.0},
		{1.015, 1.01},
		{10.0 / 3.0, 3.33},
		// -2.675*100 lands exactly on -267.5; math.Round goes away from zero.
		{-2.675, -2.68},
		{1.23456, 1.23},
		{99.999, 100.0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := RoundToTwo(tt.in); got != tt.want {
			t.Errorf("RoundToTwo(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPaginationOffset(t *testing.T) {
	tests := []struct {
		name  string
		query PaginationQuery
		want  int
	}{
		{"first page", PaginationQuery{Page: 1, Limit: 20}, 0},
		{"third page", PaginationQuery{Page: 3, Limit: 10}, 20},
		{"zero page clamps", PaginationQuery{Page: 0, Limit: 20}, 0},
		{"zero limit defaults", PaginationQuery{Page: 2, Limit: 0}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Offset(); got != tt.want {
				t.Errorf("Offset() = %d, want %d", got, tt.want)
			}
		})
	}
}
