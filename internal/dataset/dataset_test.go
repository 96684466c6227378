package dataset

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenBooksRequiresTitleColumn(t *testing.T) {
	path := writeCSV(t, "books.csv", "description,authors\nfoo,bar\n")
	_, err := OpenBooks(path)
	assert.ErrorContains(t, err, "Title")
}

func TestBooksReaderStreamsRows(t *testing.T) {
	csv := `Title,description,authors,publisher,publishedDate,categories,ratingsCount
Dune,A desert planet.,"['Frank Herbert']",Chilton,1965,"['Science Fiction']",4.0
,missing title row,,,,," "
Emma,,"['Jane Austen', 'Someone Else']",,,,
`
	path := writeCSV(t, "books.csv", csv)
	r, err := OpenBooks(path)
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Dune", row.Title)
	assert.Equal(t, "A desert planet.", row.Description)
	assert.Equal(t, []string{"Frank Herbert"}, row.Authors)
	assert.Equal(t, []string{"Science Fiction"}, row.Categories)
	assert.True(t, row.HasRatings)
	assert.Equal(t, int64(4), row.RatingsCount)

	// Reader yields every physical row; the loader decides what to skip.
	row, err = r.Next()
	require.NoError(t, err)
	assert.Empty(t, row.Title)
	assert.False(t, row.HasRatings)

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Emma", row.Title)
	assert.Equal(t, []string{"Jane Austen", "Someone Else"}, row.Authors)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRatingsReaderParsesReviewFields(t *testing.T) {
	csv := `Title,User_id,profileName,review/helpfulness,review/score,review/time,review/summary,review/text
Dune,A1,Paul,7/10,5.0,940636800,Classic,Read it twice.
Dune,A2,,,,not-a-number,,
`
	path := writeCSV(t, "ratings.csv", csv)
	r, err := OpenRatings(path)
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "A1", row.UserID)
	assert.Equal(t, "7/10", row.Helpfulness)
	assert.Equal(t, 5.0, row.Score)
	require.True(t, row.HasTime)
	assert.Equal(t, time.Unix(940636800, 0).UTC(), row.Time)

	row, err = r.Next()
	require.NoError(t, err)
	assert.False(t, row.HasTime)
	assert.Zero(t, row.Score)
}

func TestRaggedRowsTolerated(t *testing.T) {
	// The real dataset has rows with fewer cells than the header.
	csv := "Title,description,authors\nDune\n"
	path := writeCSV(t, "books.csv", csv)
	r, err := OpenBooks(path)
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "Dune", row.Title)
	assert.Empty(t, row.Description)
}

func TestParseListCell(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"['Frank Herbert']", []string{"Frank Herbert"}},
		{`["A", "B"]`, []string{"A", "B"}},
		{`['O\'Brien']`, []string{"O'Brien"}},
		{"[]", nil},
		{"", nil},
		{"Fiction, History", []string{"Fiction", "History"}},
		{"Single Value", []string{"Single Value"}},
	}
	for _, tc := range cases {
		got, err := ParseListCell(tc.in)
		require.NoError(t, err, "cell %q", tc.in)
		assert.Equal(t, tc.want, got, "cell %q", tc.in)
	}
}

func TestParseListCellMalformed(t *testing.T) {
	_, err := ParseListCell("['unterminated]")
	assert.Error(t, err)
}
