package recommend

import (
	"context"
	"fmt"
	"time"
)

// Review is a single reader review, as stored on the graph.
type Review struct {
	ProfileName string
	Score       float64
	Summary     string
	Text        string
	Time        time.Time
}

// Description returns the stored description of a book.
func (r *Recommender) Description(ctx context.Context, title string) (string, error) {
	rows, err := r.store.RunRead(ctx, `
		MATCH (b:Book {title: $title})
		RETURN b.description AS description`,
		map[string]any{"title": title})
	if err != nil {
		return "", fmt.Errorf("failed to look up book: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("book %q: %w", title, ErrNotFound)
	}
	desc, _ := rows[0]["description"].(string)
	return desc, nil
}

// AuthorsOf returns the authors of a book.
func (r *Recommender) AuthorsOf(ctx context.Context, title string) ([]string, error) {
	return r.relatedNames(ctx, title, `
		MATCH (b:Book {title: $title})
		OPTIONAL MATCH (b)-[:WRITTEN_BY]->(a:Author)
		RETURN b.title AS title, a.name AS name ORDER BY name`)
}

// GenresOf returns the categories a book belongs to.
func (r *Recommender) GenresOf(ctx context.Context, title string) ([]string, error) {
	return r.relatedNames(ctx, title, `
		MATCH (b:Book {title: $title})
		OPTIONAL MATCH (b)-[:BELONGS_TO]->(c:Category)
		RETURN b.title AS title, c.name AS name ORDER BY name`)
}

// PublisherOf returns the publisher of a book, empty when none is recorded.
func (r *Recommender) PublisherOf(ctx context.Context, title string) (string, error) {
	names, err := r.relatedNames(ctx, title, `
		MATCH (b:Book {title: $title})
		OPTIONAL MATCH (b)-[:PUBLISHED_BY]->(p:Publisher)
		RETURN b.title AS title, p.name AS name`)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}

// BooksByAuthor returns the titles written by the named author.
func (r *Recommender) BooksByAuthor(ctx context.Context, author string) ([]string, error) {
	rows, err := r.store.RunRead(ctx, `
		MATCH (a:Author {name: $name})
		OPTIONAL MATCH (b:Book)-[:WRITTEN_BY]->(a)
		RETURN a.name AS anchor, b.title AS title ORDER BY title`,
		map[string]any{"name": author})
	if err != nil {
		return nil, fmt.Errorf("failed to look up author: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("author %q: %w", author, ErrNotFound)
	}
	var titles []string
	for _, row := range rows {
		if t, ok := row["title"].(string); ok && t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// Reviews returns up to limit reviews of a book, highest-scored first.
func (r *Recommender) Reviews(ctx context.Context, title string, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.store.RunRead(ctx, `
		MATCH (b:Book {title: $title})
		OPTIONAL MATCH (rev:Review)-[:REVIEWS]->(b)
		OPTIONAL MATCH (u:User)-[:WROTE_REVIEW]->(rev)
		RETURN b.title AS anchor, rev.score AS score, rev.summary AS summary,
		       rev.text AS text, rev.time AS time, u.profileName AS profileName
		ORDER BY score DESC
		LIMIT $limit`,
		map[string]any{"title": title, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to look up reviews: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("book %q: %w", title, ErrNotFound)
	}

	var reviews []Review
	for _, row := range rows {
		if row["score"] == nil && row["summary"] == nil && row["text"] == nil {
			continue
		}
		rev := Review{}
		rev.ProfileName, _ = row["profileName"].(string)
		rev.Score, _ = row["score"].(float64)
		rev.Summary, _ = row["summary"].(string)
		rev.Text, _ = row["text"].(string)
		if t, ok := row["time"].(time.Time); ok {
			rev.Time = t
		}
		reviews = append(reviews, rev)
	}
	return reviews, nil
}

// relatedNames distinguishes "book missing" (ErrNotFound) from "book has no
// such relationships" (empty slice) by anchoring on the book row.
func (r *Recommender) relatedNames(ctx context.Context, title, query string) ([]string, error) {
	rows, err := r.store.RunRead(ctx, query, map[string]any{"title": title})
	if err != nil {
		return nil, fmt.Errorf("failed to look up book: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("book %q: %w", title, ErrNotFound)
	}
	var names []string
	for _, row := range rows {
		if n, ok := row["name"].(string); ok && n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}
