package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestMongoSearch(t *testing.T) {
	coll := &fakeCollection{docs: []passageDocument{
		{Source: "essays/founders.txt", Title: "Founders", Content: strings.Repeat("a", 20), Score: 2.5},
		{Source: "essays/cities.txt", Title: "Cities", Content: "Cambridge", Score: 1.1},
	}}
	m := newMongo(coll, MongoOptions{Limit: 3, SnippetChars: 10})

	results, err := m.Search(context.Background(), "founder cambridge")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "essays/founders.txt", results[0].URL)
	require.Equal(t, strings.Repeat("a", 10), results[0].Snippet)
	require.InDelta(t, 2.5, results[0].Score, 1e-9)
	require.Equal(t, "Cambridge", results[1].Snippet)

	require.Equal(t, bson.M{"$text": bson.M{"$search": "founder cambridge"}}, coll.filter)
	require.Len(t, coll.options, 1)
	var fo options.FindOptions
	for _, set := range coll.options[0].List() {
		require.NoError(t, set(&fo))
	}
	require.NotNil(t, fo.Limit)
	require.Equal(t, int64(3), *fo.Limit)
	require.Equal(t, bson.D{{Key: "score", Value: bson.M{"$meta": "textScore"}}}, fo.Sort)
	require.True(t, coll.closed)
}

func TestMongoDefaults(t *testing.T) {
	m := newMongo(&fakeCollection{}, MongoOptions{})
	require.Equal(t, int64(defaultMongoLimit), m.limit)
	require.Equal(t, defaultSnippetChars, m.snippet)

	_, err := NewMongo(MongoOptions{})
	require.EqualError(t, err, "mongo collection is required")

	_, err = m.Search(context.Background(), "")
	require.EqualError(t, err, "query is empty")
}

func TestMongoErrors(t *testing.T) {
	boom := errors.New("no text index")
	_, err := newMongo(&fakeCollection{err: boom}, MongoOptions{}).Search(context.Background(), "q")
	require.ErrorIs(t, err, boom)

	cursorErr := errors.New("cursor killed")
	_, err = newMongo(&fakeCollection{cursorErr: cursorErr}, MongoOptions{}).Search(context.Background(), "q")
	require.ErrorIs(t, err, cursorErr)
}

type fakeCollection struct {
	filter    any
	options   []options.Lister[options.FindOptions]
	docs      []passageDocument
	err       error
	cursorErr error
	closed    bool
}

func (f *fakeCollection) Find(_ context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	f.filter = filter
	f.options = opts
	if f.err != nil {
		return nil, f.err
	}
	return &fakeCursor{coll: f}, nil
}

type fakeCursor struct {
	coll *fakeCollection
	idx  int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.idx >= len(c.coll.docs) {
		return false
	}
	c.idx++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	doc, ok := val.(*passageDocument)
	if !ok {
		return errors.New("unexpected decode target")
	}
	*doc = c.coll.docs[c.idx-1]
	return nil
}

func (c *fakeCursor) Err() error { return c.coll.cursorErr }

func (c *fakeCursor) Close(context.Context) error {
	c.coll.closed = true
	return nil
}
