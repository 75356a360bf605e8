package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/smhanov/multistep"
)

const (
	defaultMongoLimit   = 5
	defaultSnippetChars = 1000
)

type (
	collection interface {
		Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	}

	cursor interface {
		Next(ctx context.Context) bool
		Decode(val any) error
		Err() error
		Close(ctx context.Context) error
	}

	// passageDocument is the stored form of one retrievable passage. Score is
	// filled from the text-search relevance at query time.
	passageDocument struct {
		Source  string  `bson:"source"`
		Title   string  `bson:"title"`
		Content string  `bson:"content"`
		Score   float64 `bson:"score"`
	}
)

// MongoOptions configures Mongo.
type MongoOptions struct {
	// Collection holds passages with source, title and content fields and a
	// text index covering content.
	Collection *mongodriver.Collection
	// Limit caps the number of passages per query. Defaults to 5.
	Limit int
	// SnippetChars truncates passage content. Defaults to 1000.
	SnippetChars int
	// Timeout bounds each query when positive.
	Timeout time.Duration
}

// Mongo retrieves passages from a MongoDB text index, ranked by text score.
type Mongo struct {
	coll    collection
	limit   int64
	snippet int
	timeout time.Duration
}

var _ multistep.SearchProvider = (*Mongo)(nil)

// NewMongo constructs a Mongo provider over opts.Collection.
func NewMongo(opts MongoOptions) (*Mongo, error) {
	if opts.Collection == nil {
		return nil, errors.New("mongo collection is required")
	}
	return newMongo(mongoCollection{coll: opts.Collection}, opts), nil
}

func newMongo(c collection, opts MongoOptions) *Mongo {
	m := &Mongo{coll: c, limit: defaultMongoLimit, snippet: defaultSnippetChars, timeout: opts.Timeout}
	if opts.Limit > 0 {
		m.limit = int64(opts.Limit)
	}
	if opts.SnippetChars > 0 {
		m.snippet = opts.SnippetChars
	}
	return m
}

// Search runs a $text query and returns passages by descending text score.
// Source becomes the result URL so evidence points back at the document.
func (m *Mongo) Search(ctx context.Context, query string) ([]multistep.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	score := bson.M{"$meta": "textScore"}
	filter := bson.M{"$text": bson.M{"$search": query}}
	opts := options.Find().
		SetProjection(bson.M{"source": 1, "title": 1, "content": 1, "score": score}).
		SetSort(bson.D{{Key: "score", Value: score}}).
		SetLimit(m.limit)
	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var results []multistep.SearchResult
	for cur.Next(ctx) {
		var doc passageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		content := doc.Content
		if len(content) > m.snippet {
			content = content[:m.snippet]
		}
		results = append(results, multistep.SearchResult{
			Title:   doc.Title,
			URL:     doc.Source,
			Snippet: content,
			Score:   doc.Score,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}
