package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescription(t *testing.T) {
	store := &fakeReader{responses: map[string][]map[string]any{
		"RETURN b.description AS description": {
			{"description": "A desert planet."},
		},
	}}
	r := New(Options{Store: store})

	desc, err := r.Description(context.Background(), "Dune")
	require.NoError(t, err)
	assert.Equal(t, "A desert planet.", desc)
}

func TestDescriptionNotFound(t *testing.T) {
	r := New(Options{Store: &fakeReader{}})

	_, err := r.Description(context.Background(), "Nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthorsOf(t *testing.T) {
	store := &fakeReader{responses: map[string][]map[string]any{
		"WRITTEN_BY": {
			{"title": "Good Omens", "name": "Neil Gaiman"},
			{"title": "Good Omens", "name": "Terry Pratchett"},
		},
	}}
	r := New(Options{Store: store})

	authors, err := r.AuthorsOf(context.Background(), "Good Omens")
	require.NoError(t, err)
	assert.Equal(t, []string{"Neil Gaiman", "Terry Pratchett"}, authors)
}

func TestAuthorsOfBookWithoutAuthors(t *testing.T) {
	// OPTIONAL MATCH keeps the anchor row, so a known book with no authors
	// yields an empty list rather than ErrNotFound.
	store := &fakeReader{responses: map[string][]map[string]any{
		"WRITTEN_BY": {
			{"title": "Anonymous Work", "name": nil},
		},
	}}
	r := New(Options{Store: store})

	authors, err := r.AuthorsOf(context.Background(), "Anonymous Work")
	require.NoError(t, err)
	assert.Empty(t, authors)
}

func TestPublisherOfNoneRecorded(t *testing.T) {
	store := &fakeReader{responses: map[string][]map[string]any{
		"PUBLISHED_BY": {
			{"title": "Dune", "name": nil},
		},
	}}
	r := New(Options{Store: store})

	name, err := r.PublisherOf(context.Background(), "Dune")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestBooksByAuthorNotFound(t *testing.T) {
	r := New(Options{Store: &fakeReader{}})

	_, err := r.BooksByAuthor(context.Background(), "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBooksByAuthor(t *testing.T) {
	store := &fakeReader{responses: map[string][]map[string]any{
		"MATCH (a:Author {name: $name})": {
			{"anchor": "Frank Herbert", "title": "Dune"},
			{"anchor": "Frank Herbert", "title": "Dune Messiah"},
		},
	}}
	r := New(Options{Store: store})

	titles, err := r.BooksByAuthor(context.Background(), "Frank Herbert")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune", "Dune Messiah"}, titles)
}

func TestReviews(t *testing.T) {
	reviewed := time.Date(1999, 10, 23, 0, 0, 0, 0, time.UTC)
	store := &fakeReader{responses: map[string][]map[string]any{
		"WROTE_REVIEW": {
			{"anchor": "Dune", "score": 5.0, "summary": "Classic", "text": "Read it twice.", "time": reviewed, "profileName": "Paul"},
			{"anchor": "Dune", "score": nil, "summary": nil, "text": nil, "time": nil, "profileName": nil},
		},
	}}
	r := New(Options{Store: store})

	reviews, err := r.Reviews(context.Background(), "Dune", 5)
	require.NoError(t, err)
	// The all-nil row is the anchor of a book with no matching review and
	// is dropped.
	require.Len(t, reviews, 1)
	assert.Equal(t, "Paul", reviews[0].ProfileName)
	assert.Equal(t, 5.0, reviews[0].Score)
	assert.Equal(t, reviewed, reviews[0].Time)
}

func TestReviewsNotFound(t *testing.T) {
	r := New(Options{Store: &fakeReader{}})

	_, err := r.Reviews(context.Background(), "Nonexistent", 5)
	assert.ErrorIs(t, err, ErrNotFound)
}
