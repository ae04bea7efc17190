package dataset

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func countryTotals(rows ...[]any) Result {
	return Result{
		Columns: []string{"country", "total amount"},
		Kinds:   []Kind{KindText, KindNumeric},
		Rows:    rows,
	}
}

func TestBudgetQuery_Dataset_AugmentScenario(t *testing.T) {
	t.Parallel()

	in := countryTotals(
		[]any{"A", int64(10)},
		[]any{"B", int64(30)},
		[]any{"C", int64(60)},
	)

	out, err := Augment(in)
	require.NoError(t, err)
	require.True(t, out.HasRatio())
	require.Equal(t, 2, out.Ratio)
	require.Equal(t, []string{"country", "total amount", RatioColumn}, out.Columns)
	require.Equal(t, KindNumeric, out.Kinds[2])
	require.NoError(t, out.Validate())

	want := []float64{0.1, 0.3, 0.6}
	for i, row := range out.Rows {
		require.InDelta(t, want[i], row[2].(float64), 1e-12)
	}

	// The input is left untouched.
	require.Len(t, in.Columns, 2)
	for _, row := range in.Rows {
		require.Len(t, row, 2)
	}
}

func TestBudgetQuery_Dataset_AugmentNoop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Result
	}{
		{
			name: "no rows",
			in:   countryTotals(),
		},
		{
			name: "single row",
			in:   countryTotals([]any{"A", 100.0}),
		},
		{
			name: "no numeric columns",
			in: Result{
				Columns: []string{"country", "module"},
				Kinds:   []Kind{KindText, KindText},
				Rows:    [][]any{{"A", "HIV"}, {"B", "TB"}},
			},
		},
		{
			name: "two numeric columns",
			in: Result{
				Columns: []string{"country", "budget", "spent"},
				Kinds:   []Kind{KindText, KindNumeric, KindNumeric},
				Rows:    [][]any{{"A", 1.0, 2.0}, {"B", 3.0, 4.0}},
			},
		},
		{
			name: "sum is zero",
			in:   countryTotals([]any{"A", 5.0}, []any{"B", -5.0}),
		},
		{
			name: "all nulls",
			in:   countryTotals([]any{"A", nil}, []any{"B", nil}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := Augment(tt.in)
			require.NoError(t, err)
			require.False(t, out.HasRatio())
			require.Equal(t, -1, out.Ratio)
			if diff := cmp.Diff(tt.in, out.Result); diff != "" {
				t.Fatalf("result changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBudgetQuery_Dataset_AugmentRatiosSumToOne(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		n := 2 + rng.Intn(40)
		rows := make([][]any, n)
		for i := range rows {
			rows[i] = []any{"row", rng.Float64()*1e6 - 2e5}
		}
		in := countryTotals(rows...)

		var total float64
		for _, row := range rows {
			total += row[1].(float64)
		}
		out, err := Augment(in)
		require.NoError(t, err)
		if total == 0 {
			require.False(t, out.HasRatio())
			continue
		}
		require.True(t, out.HasRatio())

		var sum float64
		for _, row := range out.Rows {
			sum += row[out.Ratio].(float64)
		}
		require.InDelta(t, 1.0, sum, 1e-9, "trial %d", trial)
	}
}

func TestBudgetQuery_Dataset_AugmentNegativeTotalsAreUnbounded(t *testing.T) {
	t.Parallel()

	out, err := Augment(countryTotals([]any{"A", 30.0}, []any{"B", -20.0}))
	require.NoError(t, err)
	require.InDelta(t, 3.0, out.Rows[0][2].(float64), 1e-12)
	require.InDelta(t, -2.0, out.Rows[1][2].(float64), 1e-12)
}

func TestBudgetQuery_Dataset_AugmentNullValues(t *testing.T) {
	t.Parallel()

	out, err := Augment(countryTotals([]any{"A", 25.0}, []any{"B", nil}, []any{"C", 75.0}))
	require.NoError(t, err)
	require.True(t, out.HasRatio())
	require.InDelta(t, 0.25, out.Rows[0][2].(float64), 1e-12)
	require.Nil(t, out.Rows[1][2])
	require.InDelta(t, 0.75, out.Rows[2][2].(float64), 1e-12)
}

func TestBudgetQuery_Dataset_AugmentTwiceIsRejected(t *testing.T) {
	t.Parallel()

	out, err := Augment(countryTotals([]any{"A", 1}, []any{"B", 3}))
	require.NoError(t, err)
	require.True(t, out.HasRatio())

	_, err = Augment(out.Result)
	require.ErrorIs(t, err, ErrAlreadyAugmented)
}

func TestBudgetQuery_Dataset_KindForDatabaseType(t *testing.T) {
	t.Parallel()

	tests := map[string]Kind{
		"DECIMAL":                          KindNumeric,
		"decimal(18,2)":                    KindNumeric,
		"MONEY":                            KindNumeric,
		"FLOAT":                            KindNumeric,
		"HUGEINT":                          KindNumeric,
		"Nullable(Float64)":                KindNumeric,
		"Decimal(38, 4)":                   KindNumeric,
		"UInt64":                           KindNumeric,
		"NVARCHAR":                         KindText,
		"LowCardinality(String)":           KindText,
		"Nullable(LowCardinality(String))": KindText,
		"VARCHAR":                          KindText,
		"DATETIME2":                        KindTemporal,
		"DateTime64(3)":                    KindTemporal,
		"BIT":                              KindBoolean,
		"":                                 KindUnknown,
		"GEOMETRY":                         KindUnknown,
	}
	for name, want := range tests {
		require.Equal(t, want, KindForDatabaseType(name), name)
	}
}

type fakeDecimal struct{ v float64 }

func (d fakeDecimal) Float64() float64 { return d.v }

type fakeExactDecimal struct{ v float64 }

func (d fakeExactDecimal) Float64() (float64, bool) { return d.v, true }

func TestBudgetQuery_Dataset_ToFloat(t *testing.T) {
	t.Parallel()

	for _, v := range []any{int64(12), int32(12), uint8(12), float32(12), 12.0, "12", []byte("12"), fakeDecimal{12}, fakeExactDecimal{12}} {
		f, ok := ToFloat(v)
		require.True(t, ok, "%T", v)
		require.Equal(t, 12.0, f, "%T", v)
	}
	_, ok := ToFloat(nil)
	require.False(t, ok)
	_, ok = ToFloat("abc")
	require.False(t, ok)
	_, ok = ToFloat(struct{}{})
	require.False(t, ok)
}

func TestBudgetQuery_Dataset_InferKinds(t *testing.T) {
	t.Parallel()

	r := Result{
		Columns: []string{"country", "amount", "mixed", "empty"},
		Kinds:   []Kind{KindUnknown, KindUnknown, KindUnknown, KindUnknown},
		Rows: [][]any{
			{"A", int64(1), "x", nil},
			{"B", nil, 2.0, nil},
			{"C", fakeDecimal{3}, "y", nil},
		},
	}
	r.InferKinds()
	require.Equal(t, []Kind{KindText, KindNumeric, KindText, KindUnknown}, r.Kinds)
}

func TestBudgetQuery_Dataset_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, countryTotals([]any{"A", 1}).Validate())
	require.Error(t, countryTotals([]any{"A"}).Validate())
	require.Error(t, Result{Columns: []string{"a", "a"}, Kinds: []Kind{KindText, KindText}}.Validate())
	require.Error(t, Result{Columns: []string{"a"}}.Validate())
}
