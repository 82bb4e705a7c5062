// Package source reads the sales extract as a finite, non-restartable
// sequence of bounded batches.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/salesload/pkg/core"
)

// DefaultChunkSize is used when Config.ChunkSize is not positive.
const DefaultChunkSize = 1000

// Config configures a Reader.
type Config struct {
	Path      string
	ChunkSize int
	Delimiter rune
	Logger    *slog.Logger
}

// Batch is one chunk of source rows keyed by normalized column name.
type Batch struct {
	Index   int
	Offset  int // data rows preceding this batch
	Columns []string
	Rows    []map[string]string
}

// Error reports a failure to open or read the source file.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reader yields batches lazily. It is single-pass: once Next returns io.EOF
// the source is exhausted.
type Reader struct {
	path      string
	chunkSize int
	logger    *slog.Logger

	file    *os.File
	csv     *csv.Reader
	columns []string
	index   int
	read    int
	done    bool
}

// Open opens the source file and reads its header row.
func Open(cfg Config) (*Reader, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, &Error{Path: cfg.Path, Err: err}
	}

	r := csv.NewReader(f)
	if cfg.Delimiter != 0 {
		r.Comma = cfg.Delimiter
	}
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		if errors.Is(err, io.EOF) {
			err = errors.New("missing header row")
		}
		return nil, &Error{Path: cfg.Path, Err: fmt.Errorf("reading header: %w", err)}
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = NormalizeColumn(h)
	}

	logger.Debug("opened source", slog.String("path", cfg.Path), slog.Any("columns", columns))

	return &Reader{
		path:      cfg.Path,
		chunkSize: chunkSize,
		logger:    logger,
		file:      f,
		csv:       r,
		columns:   columns,
	}, nil
}

// NormalizeColumn converts a header cell to its canonical lowercase,
// underscore-separated form.
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, name)
}

// Columns returns the normalized header.
func (r *Reader) Columns() []string {
	return r.columns
}

// CheckSchema returns a *core.SchemaError if the header lacks a required column.
func (r *Reader) CheckSchema() error {
	return core.CheckColumns(r.columns)
}

// Next returns the next batch of at most ChunkSize rows, or io.EOF when the
// source is exhausted.
func (r *Reader) Next() (*Batch, error) {
	if r.done {
		return nil, io.EOF
	}

	batch := &Batch{Index: r.index, Offset: r.read, Columns: r.columns}
	for len(batch.Rows) < r.chunkSize {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			return nil, &Error{Path: r.path, Err: err}
		}
		if len(record) > len(r.columns) {
			r.logger.Warn("ignoring additional columns not included in the header",
				slog.Int("batch", r.index), slog.Int("fields", len(record)))
		}

		row := make(map[string]string, len(r.columns))
		for i, col := range r.columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		batch.Rows = append(batch.Rows, row)
	}

	if len(batch.Rows) == 0 {
		return nil, io.EOF
	}
	r.index++
	r.read += len(batch.Rows)
	return batch, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
