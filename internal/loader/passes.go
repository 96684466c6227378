package loader

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mspro-labs/book-buddy/internal/dataset"
	"mspro-labs/book-buddy/internal/graph"
	"mspro-labs/book-buddy/internal/logging"
)

// Namespace for deterministic review identifiers. Reviews carry no natural
// key in the dataset, so the id is a v5 UUID over the row's identifying
// fields; re-running the load merges onto the same node.
var reviewNamespace = uuid.MustParse("1db1c45a-92e7-4c5c-9c1e-4f6a2f8d7b31")

// ReviewID derives the stable identifier for one ratings row.
func ReviewID(row dataset.RatingRow) string {
	seed := fmt.Sprintf("%s|%s|%d|%s", row.UserID, row.Title, row.Time.Unix(), row.Summary)
	return uuid.NewSHA1(reviewNamespace, []byte(seed)).String()
}

// Pipeline runs the full dataset load: all node passes first (concurrently,
// bounded by Workers), then all relationship passes. Relationships reference
// nodes by natural key, so the barrier between the two phases is a
// correctness requirement, not an optimization.
type Pipeline struct {
	Store       Writer
	BooksPath   string
	RatingsPath string
	BatchSize   int
	Workers     int
	Log         *logging.Logger
}

func (p *Pipeline) opts() Options {
	return Options{Store: p.Store, BatchSize: p.BatchSize, Log: p.Log}
}

// Run executes every pass. Each pass opens its own CSV reader and its writes
// run in their own sessions, so passes are safe to run in parallel.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.Workers <= 0 {
		p.Workers = 1
	}

	p.Log.Info("starting node passes", "workers", p.Workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	g.Go(func() error { return p.loadBookNodes(gctx) })
	g.Go(func() error { return p.loadListNodes(gctx, graph.AuthorSpec, func(r dataset.BookRow) []string { return r.Authors }) })
	g.Go(func() error { return p.loadListNodes(gctx, graph.CategorySpec, func(r dataset.BookRow) []string { return r.Categories }) })
	g.Go(func() error { return p.loadPublisherNodes(gctx) })
	g.Go(func() error { return p.loadUserNodes(gctx) })
	g.Go(func() error { return p.loadReviewNodes(gctx) })
	if err := g.Wait(); err != nil {
		return err
	}

	p.Log.Info("starting relationship passes", "workers", p.Workers)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	g.Go(func() error {
		return p.loadBookRels(gctx, graph.WrittenBySpec, func(r dataset.BookRow) []string { return r.Authors })
	})
	g.Go(func() error {
		return p.loadBookRels(gctx, graph.BelongsToSpec, func(r dataset.BookRow) []string { return r.Categories })
	})
	g.Go(func() error { return p.loadPublishedByRels(gctx) })
	g.Go(func() error { return p.loadReviewRels(gctx) })
	return g.Wait()
}

func (p *Pipeline) booksNext() (func() (dataset.BookRow, error), func() error, error) {
	r, err := dataset.OpenBooks(p.BooksPath)
	if err != nil {
		return nil, nil, err
	}
	return r.Next, r.Close, nil
}

func (p *Pipeline) ratingsNext() (func() (dataset.RatingRow, error), func() error, error) {
	r, err := dataset.OpenRatings(p.RatingsPath)
	if err != nil {
		return nil, nil, err
	}
	return r.Next, r.Close, nil
}

func (p *Pipeline) loadBookNodes(ctx context.Context) error {
	next, closeFn, err := p.booksNext()
	if err != nil {
		return err
	}
	defer closeFn()
	_, err = LoadNodes(ctx, next, BookNode, graph.BookSpec, p.opts())
	return err
}

func (p *Pipeline) loadListNodes(ctx context.Context, spec graph.NodeSpec, field func(dataset.BookRow) []string) error {
	next, closeFn, err := p.booksNext()
	if err != nil {
		return err
	}
	defer closeFn()
	extract := func(row dataset.BookRow) []map[string]any {
		values := field(row)
		out := make([]map[string]any, 0, len(values))
		for _, name := range values {
			out = append(out, map[string]any{"name": name})
		}
		return out
	}
	_, err = LoadNodes(ctx, next, extract, spec, p.opts())
	return err
}

func (p *Pipeline) loadPublisherNodes(ctx context.Context) error {
	next, closeFn, err := p.booksNext()
	if err != nil {
		return err
	}
	defer closeFn()
	extract := func(row dataset.BookRow) []map[string]any {
		if row.Publisher == "" {
			return nil
		}
		return []map[string]any{{"name": row.Publisher}}
	}
	_, err = LoadNodes(ctx, next, extract, graph.PublisherSpec, p.opts())
	return err
}

func (p *Pipeline) loadUserNodes(ctx context.Context) error {
	next, closeFn, err := p.ratingsNext()
	if err != nil {
		return err
	}
	defer closeFn()
	_, err = LoadNodes(ctx, next, UserNode, graph.UserSpec, p.opts())
	return err
}

func (p *Pipeline) loadReviewNodes(ctx context.Context) error {
	next, closeFn, err := p.ratingsNext()
	if err != nil {
		return err
	}
	defer closeFn()
	_, err = LoadNodes(ctx, next, ReviewNode, graph.ReviewSpec, p.opts())
	return err
}

func (p *Pipeline) loadBookRels(ctx context.Context, spec graph.RelSpec, field func(dataset.BookRow) []string) error {
	next, closeFn, err := p.booksNext()
	if err != nil {
		return err
	}
	defer closeFn()
	extract := func(row dataset.BookRow) []RelValue {
		if row.Title == "" {
			return nil
		}
		values := field(row)
		out := make([]RelValue, 0, len(values))
		for _, name := range values {
			out = append(out, RelValue{From: row.Title, To: name})
		}
		return out
	}
	_, _, err = LoadRelationships(ctx, next, extract, spec, p.opts())
	return err
}

func (p *Pipeline) loadPublishedByRels(ctx context.Context) error {
	next, closeFn, err := p.booksNext()
	if err != nil {
		return err
	}
	defer closeFn()
	_, _, err = LoadRelationships(ctx, next, PublishedByRel, graph.PublishedBySpec, p.opts())
	return err
}

func (p *Pipeline) loadReviewRels(ctx context.Context) error {
	// WROTE_REVIEW and REVIEWS read the same file and share the ordering
	// dependency on the review node pass, so they run as one sequential pair.
	next, closeFn, err := p.ratingsNext()
	if err != nil {
		return err
	}
	if _, _, err := LoadRelationships(ctx, next, WroteReviewRel, graph.WroteReviewSpec, p.opts()); err != nil {
		closeFn()
		return err
	}
	closeFn()

	next, closeFn, err = p.ratingsNext()
	if err != nil {
		return err
	}
	defer closeFn()
	_, _, err = LoadRelationships(ctx, next, ReviewsRel, graph.ReviewsSpec, p.opts())
	return err
}

// --- Extractors ---

// BookNode extracts the Book property map from a books row. Rows without a
// title contribute nothing.
func BookNode(row dataset.BookRow) []map[string]any {
	if row.Title == "" {
		return nil
	}
	props := map[string]any{"title": row.Title}
	if row.Description != "" {
		props["description"] = row.Description
	}
	if row.Image != "" {
		props["image"] = row.Image
	}
	if row.PublishedDate != "" {
		props["publishedDate"] = row.PublishedDate
	}
	if row.InfoLink != "" {
		props["infoLink"] = row.InfoLink
	}
	if len(row.Categories) > 0 {
		props["categories"] = row.Categories
	}
	if row.HasRatings {
		props["ratingsCount"] = row.RatingsCount
	}
	return []map[string]any{props}
}

// UserNode extracts the User property map from a ratings row.
func UserNode(row dataset.RatingRow) []map[string]any {
	if row.UserID == "" {
		return nil
	}
	props := map[string]any{"user_id": row.UserID}
	if row.ProfileName != "" {
		props["profileName"] = row.ProfileName
	}
	return []map[string]any{props}
}

// ReviewNode extracts the Review property map, keyed by the derived id.
func ReviewNode(row dataset.RatingRow) []map[string]any {
	if row.UserID == "" && row.Summary == "" && row.Text == "" {
		return nil
	}
	props := map[string]any{
		"review_id": ReviewID(row),
		"score":     row.Score,
	}
	if row.Helpfulness != "" {
		props["helpfulness"] = row.Helpfulness
	}
	if row.HasTime {
		props["time"] = row.Time
	}
	if row.Summary != "" {
		props["summary"] = row.Summary
	}
	if row.Text != "" {
		props["text"] = row.Text
	}
	return []map[string]any{props}
}

// PublishedByRel extracts the Book->Publisher relationship, carrying the
// publish date when the row has one.
func PublishedByRel(row dataset.BookRow) []RelValue {
	if row.Title == "" || row.Publisher == "" {
		return nil
	}
	rel := RelValue{From: row.Title, To: row.Publisher}
	if row.PublishedDate != "" {
		rel.Props = map[string]any{"date": row.PublishedDate}
	}
	return []RelValue{rel}
}

// WroteReviewRel extracts the User->Review relationship.
func WroteReviewRel(row dataset.RatingRow) []RelValue {
	if row.UserID == "" {
		return nil
	}
	return []RelValue{{From: row.UserID, To: ReviewID(row)}}
}

// ReviewsRel extracts the Review->Book relationship.
func ReviewsRel(row dataset.RatingRow) []RelValue {
	if row.Title == "" {
		return nil
	}
	return []RelValue{{From: ReviewID(row), To: row.Title}}
}
