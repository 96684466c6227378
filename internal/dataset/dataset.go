// Package dataset streams rows out of the books and ratings CSV files.
// Files are read row by row so multi-hundred-thousand-row datasets never
// sit in memory at once.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// BookRow is one row of the books file. Authors and Categories are already
// parsed out of their stringified-list cells; a malformed cell leaves the
// slice nil without invalidating the rest of the row.
type BookRow struct {
	Title         string
	Description   string
	Image         string
	Authors       []string
	Categories    []string
	Publisher     string
	PublishedDate string
	InfoLink      string
	RatingsCount  int64
	HasRatings    bool
}

// RatingRow is one row of the ratings file.
type RatingRow struct {
	Title       string
	UserID      string
	ProfileName string
	Helpfulness string
	Score       float64
	Time        time.Time
	HasTime     bool
	Summary     string
	Text        string
}

type csvFile struct {
	f   *os.File
	r   *csv.Reader
	idx map[string]int
}

func openCSV(path string) (*csvFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // rows may be short; missing cells read as empty

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read CSV header from %q: %w", path, err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	return &csvFile{f: f, r: r, idx: idx}, nil
}

func (c *csvFile) get(record []string, column string) string {
	i, ok := c.idx[column]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c *csvFile) Close() error { return c.f.Close() }

// BooksReader streams BookRows. Next returns io.EOF after the last row.
type BooksReader struct {
	file *csvFile
}

func OpenBooks(path string) (*BooksReader, error) {
	file, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	if _, ok := file.idx["Title"]; !ok {
		file.Close()
		return nil, fmt.Errorf("books file %q has no Title column", path)
	}
	return &BooksReader{file: file}, nil
}

func (b *BooksReader) Close() error { return b.file.Close() }

func (b *BooksReader) Next() (BookRow, error) {
	record, err := b.file.r.Read()
	if err != nil {
		return BookRow{}, err
	}
	row := BookRow{
		Title:         b.file.get(record, "Title"),
		Description:   b.file.get(record, "description"),
		Image:         b.file.get(record, "image"),
		Publisher:     b.file.get(record, "publisher"),
		PublishedDate: b.file.get(record, "publishedDate"),
		InfoLink:      b.file.get(record, "infoLink"),
	}
	// Malformed list cells are dropped for that field only.
	row.Authors, _ = ParseListCell(b.file.get(record, "authors"))
	row.Categories, _ = ParseListCell(b.file.get(record, "categories"))
	if raw := b.file.get(record, "ratingsCount"); raw != "" {
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			row.RatingsCount = int64(n)
			row.HasRatings = true
		}
	}
	return row, nil
}

// RatingsReader streams RatingRows. Next returns io.EOF after the last row.
type RatingsReader struct {
	file *csvFile
}

func OpenRatings(path string) (*RatingsReader, error) {
	file, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	if _, ok := file.idx["Title"]; !ok {
		file.Close()
		return nil, fmt.Errorf("ratings file %q has no Title column", path)
	}
	return &RatingsReader{file: file}, nil
}

func (r *RatingsReader) Close() error { return r.file.Close() }

func (r *RatingsReader) Next() (RatingRow, error) {
	record, err := r.file.r.Read()
	if err != nil {
		return RatingRow{}, err
	}
	row := RatingRow{
		Title:       r.file.get(record, "Title"),
		UserID:      r.file.get(record, "User_id"),
		ProfileName: r.file.get(record, "profileName"),
		Helpfulness: r.file.get(record, "review/helpfulness"),
		Summary:     r.file.get(record, "review/summary"),
		Text:        r.file.get(record, "review/text"),
	}
	if raw := r.file.get(record, "review/score"); raw != "" {
		row.Score, _ = strconv.ParseFloat(raw, 64)
	}
	if raw := r.file.get(record, "review/time"); raw != "" {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			row.Time = time.Unix(secs, 0).UTC()
			row.HasTime = true
		}
	}
	return row, nil
}

// ReadAllBooks drains a reader. Intended for tests and small datasets; the
// loader streams instead.
func ReadAllBooks(r *BooksReader) ([]BookRow, error) {
	var rows []BookRow
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}
