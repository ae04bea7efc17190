package feedback

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return rows
}

func TestBudgetQuery_Feedback_Append(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "feedback_logs.xlsx")
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 4, 9, 30, 15, 0, time.UTC))
	l, err := New(Config{Logger: testLogger(), Path: path, Clock: clock})
	require.NoError(t, err)

	up := true
	require.NoError(t, l.Append(Entry{
		IPAddress:     "10.0.0.1",
		OriginalQuery: "budget by country",
		ThumbsUp:      &up,
		FeedbackText:  "great",
	}))

	clock.Advance(time.Minute)
	require.NoError(t, l.Append(Entry{IPAddress: "10.0.0.2", OriginalQuery: "hiv budget", FeedbackText: "no rating"}))

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	require.Equal(t, Header, rows[0])
	require.Equal(t, []string{"2025-03-04 09:30:15", "10.0.0.1", "budget by country", "TRUE", "great"}, rows[1])
	require.Equal(t, []string{"2025-03-04 09:31:15", "10.0.0.2", "hiv budget", "", "no rating"}, rows[2])
}

func TestBudgetQuery_Feedback_AppendsToExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "feedback_logs.xlsx")
	down := false
	for range 2 {
		// A fresh Log per append, as across process restarts.
		l, err := New(Config{Logger: testLogger(), Path: path})
		require.NoError(t, err)
		require.NoError(t, l.Append(Entry{OriginalQuery: "q", ThumbsUp: &down}))
	}

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	require.Equal(t, "FALSE", rows[2][3])
}

func TestBudgetQuery_Feedback_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "feedback_logs.xlsx")
	l, err := New(Config{Logger: testLogger(), Path: path})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Append(Entry{OriginalQuery: "q"}))
		}()
	}
	wg.Wait()

	require.Len(t, readRows(t, path), 11)
}

func TestBudgetQuery_Feedback_ConfigValidate(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Path: "x.xlsx"})
	require.Error(t, err)
	_, err = New(Config{Logger: testLogger()})
	require.Error(t, err)
}
