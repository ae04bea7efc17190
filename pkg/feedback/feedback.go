// Package feedback appends user ratings of answers to a spreadsheet log.
package feedback

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"

	"github.com/malbeclabs/budgetquery/pkg/metrics"
)

const (
	SheetName       = "Feedback"
	TimestampFormat = "2006-01-02 15:04:05"
)

// Header is the first row of the log.
var Header = []string{"Timestamp", "IP Address", "Original Query", "Thumbs Up", "Feedback Text"}

// Entry is a single piece of feedback. ThumbsUp is nil when the user gave no rating.
type Entry struct {
	IPAddress     string
	OriginalQuery string
	ThumbsUp      *bool
	FeedbackText  string
}

type Config struct {
	Logger *slog.Logger
	Path   string
	Clock  clockwork.Clock
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Path == "" {
		return errors.New("path is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Log appends entries to an xlsx file, creating it with a header row on first use. Appends are
// serialized.
type Log struct {
	log *slog.Logger
	cfg Config
	mu  sync.Mutex
}

func New(cfg Config) (*Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate feedback config: %w", err)
	}
	return &Log{log: cfg.Logger, cfg: cfg}, nil
}

// Append writes entry as the next row of the log.
func (l *Log) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return fmt.Errorf("failed to read feedback log: %w", err)
	}
	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}

	var thumbsUp any
	if entry.ThumbsUp != nil {
		thumbsUp = *entry.ThumbsUp
	}
	row := []any{
		l.cfg.Clock.Now().Format(TimestampFormat),
		entry.IPAddress,
		entry.OriginalQuery,
		thumbsUp,
		entry.FeedbackText,
	}
	if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
		return fmt.Errorf("failed to write feedback row: %w", err)
	}
	if err := f.SaveAs(l.cfg.Path); err != nil {
		return fmt.Errorf("failed to save feedback log: %w", err)
	}

	metrics.FeedbackTotal.WithLabelValues(rating(entry.ThumbsUp)).Inc()
	l.log.Info("feedback: entry recorded", "rows", len(rows), "rating", rating(entry.ThumbsUp))
	return nil
}

func (l *Log) open() (*excelize.File, error) {
	if _, err := os.Stat(l.cfg.Path); err == nil {
		f, err := excelize.OpenFile(l.cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open feedback log: %w", err)
		}
		return f, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat feedback log: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name feedback sheet: %w", err)
	}
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write feedback header: %w", err)
	}
	return f, nil
}

func rating(thumbsUp *bool) string {
	if thumbsUp == nil {
		return "none"
	}
	return strconv.FormatBool(*thumbsUp)
}
