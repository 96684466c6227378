package graph

import (
	"fmt"
	"strings"
)

// NodeSpec describes one node label the loader is allowed to write. KeyProp
// is the natural key the MERGE is keyed on; Props lists the non-key
// attributes a batch row may carry.
type NodeSpec struct {
	Label   string
	KeyProp string
	Props   []string
}

// RelSpec describes one relationship type. FromKey/ToKey name the natural
// keys the endpoint MATCH uses; Props lists optional relationship
// attributes (e.g. the publish date on PUBLISHED_BY).
type RelSpec struct {
	Type      string
	FromLabel string
	FromKey   string
	ToLabel   string
	ToKey     string
	Props     []string
}

// The closed set of labels and relationship types this dataset produces.
// Label and property names are interpolated into Cypher text, so everything
// the loader or backfill touches must come from this registry.
var (
	BookSpec = NodeSpec{
		Label:   "Book",
		KeyProp: "title",
		Props:   []string{"description", "image", "publishedDate", "infoLink", "categories", "ratingsCount"},
	}
	AuthorSpec    = NodeSpec{Label: "Author", KeyProp: "name"}
	CategorySpec  = NodeSpec{Label: "Category", KeyProp: "name"}
	PublisherSpec = NodeSpec{Label: "Publisher", KeyProp: "name"}
	UserSpec      = NodeSpec{Label: "User", KeyProp: "user_id", Props: []string{"profileName"}}
	ReviewSpec    = NodeSpec{
		Label:   "Review",
		KeyProp: "review_id",
		Props:   []string{"helpfulness", "score", "time", "summary", "text"},
	}

	WrittenBySpec = RelSpec{
		Type: "WRITTEN_BY", FromLabel: "Book", FromKey: "title", ToLabel: "Author", ToKey: "name",
	}
	BelongsToSpec = RelSpec{
		Type: "BELONGS_TO", FromLabel: "Book", FromKey: "title", ToLabel: "Category", ToKey: "name",
	}
	PublishedBySpec = RelSpec{
		Type: "PUBLISHED_BY", FromLabel: "Book", FromKey: "title", ToLabel: "Publisher", ToKey: "name",
		Props: []string{"date"},
	}
	WroteReviewSpec = RelSpec{
		Type: "WROTE_REVIEW", FromLabel: "User", FromKey: "user_id", ToLabel: "Review", ToKey: "review_id",
	}
	ReviewsSpec = RelSpec{
		Type: "REVIEWS", FromLabel: "Review", FromKey: "review_id", ToLabel: "Book", ToKey: "title",
	}
)

var nodeSpecs = map[string]NodeSpec{
	BookSpec.Label:      BookSpec,
	AuthorSpec.Label:    AuthorSpec,
	CategorySpec.Label:  CategorySpec,
	PublisherSpec.Label: PublisherSpec,
	UserSpec.Label:      UserSpec,
	ReviewSpec.Label:    ReviewSpec,
}

// NodeSpecFor returns the registered spec for a label.
func NodeSpecFor(label string) (NodeSpec, error) {
	spec, ok := nodeSpecs[label]
	if !ok {
		return NodeSpec{}, fmt.Errorf("label %q is not in the schema registry", label)
	}
	return spec, nil
}

// ValidateEmbeddingTarget checks that a (label, source property) pair names a
// registered label and one of its known text properties before the pair is
// ever spliced into query text.
func ValidateEmbeddingTarget(label, property string) error {
	spec, err := NodeSpecFor(label)
	if err != nil {
		return err
	}
	if property == spec.KeyProp {
		return nil
	}
	for _, p := range spec.Props {
		if p == property {
			return nil
		}
	}
	return fmt.Errorf("label %q has no property %q", label, property)
}

// EmbeddingProperty is the repo-wide naming convention for a vector computed
// from a source text property.
func EmbeddingProperty(source string) string {
	return source + "_embedding"
}

// ValidateEmbeddingProperty accepts only "<source>_embedding" names whose
// source passes ValidateEmbeddingTarget.
func ValidateEmbeddingProperty(label, property string) error {
	source, ok := strings.CutSuffix(property, "_embedding")
	if !ok {
		return fmt.Errorf("property %q is not an embedding property", property)
	}
	return ValidateEmbeddingTarget(label, source)
}
