package db

import (
	"database/sql"
	"errors"
	"testing"
)

var (
	_ rowScanner = (*sql.Row)(nil)
	_ rowScanner = (*sql.Rows)(nil)
)

type countingRow struct {
	dests int
	err   error
}

func (r *countingRow) Scan(dest ...interface{}) error {
	r.dests = len(dest)
	return r.err
}

func TestScanners_ColumnCounts(t *testing.T) {
	tests := []struct {
		name string
		scan func(rowScanner) error
		want int
	}{
		{
			name: "fixture",
			scan: func(r rowScanner) error {
				_, err := scanFixture(r)
				return err
			},
			want: 12,
		},
		{
			name: "period",
			scan: func(r rowScanner) error {
				_, err := scanPeriod(r)
				return err
			},
			want: 6,
		},
		{
			name: "substitution",
			scan: func(r rowScanner) error {
				_, err := scanSubstitution(r)
				return err
			},
			want: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &countingRow{err: sql.ErrNoRows}
			if err := tt.scan(row); !errors.Is(err, sql.ErrNoRows) {
				t.Errorf("Expected sql.ErrNoRows, got %v", err)
			}
			if row.dests != tt.want {
				t.Errorf("Expected %d scan targets, got %d", tt.want, row.dests)
			}
		})
	}
}
