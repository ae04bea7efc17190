package dataset

import (
	"errors"
)

// RatioColumn is the name of the share-of-total column appended by Augment.
const RatioColumn = "% of total"

// ErrAlreadyAugmented is returned when Augment is given a result that already carries a ratio column.
var ErrAlreadyAugmented = errors.New("result already has a " + RatioColumn + " column")

// Augmented is a Result plus the index of its synthetic ratio column (-1 when none was added).
type Augmented struct {
	Result
	Ratio int
}

// HasRatio reports whether a ratio column was appended.
func (a Augmented) HasRatio() bool {
	return a.Ratio >= 0
}

// Augment appends a share-of-total column when the result has more than one row, exactly one
// numeric column, and that column sums to a non-zero total. Otherwise the result is returned
// unchanged. The input is never modified.
//
// NULL values are skipped when summing and produce a NULL ratio.
func Augment(r Result) (Augmented, error) {
	if r.ColumnIndex(RatioColumn) >= 0 {
		return Augmented{}, ErrAlreadyAugmented
	}
	unchanged := Augmented{Result: r, Ratio: -1}

	if len(r.Rows) <= 1 {
		return unchanged, nil
	}
	numeric := r.NumericColumns()
	if len(numeric) != 1 {
		return unchanged, nil
	}
	col := numeric[0]

	var total float64
	for _, row := range r.Rows {
		if v, ok := ToFloat(row[col]); ok {
			total += v
		}
	}
	if total == 0 {
		return unchanged, nil
	}

	out := Result{
		Columns: append(append(make([]string, 0, len(r.Columns)+1), r.Columns...), RatioColumn),
		Kinds:   append(append(make([]Kind, 0, len(r.Kinds)+1), r.Kinds...), KindNumeric),
		Rows:    make([][]any, len(r.Rows)),
	}
	for i, row := range r.Rows {
		newRow := make([]any, 0, len(row)+1)
		newRow = append(newRow, row...)
		if v, ok := ToFloat(row[col]); ok {
			newRow = append(newRow, v/total)
		} else {
			newRow = append(newRow, nil)
		}
		out.Rows[i] = newRow
	}
	return Augmented{Result: out, Ratio: len(r.Columns)}, nil
}
