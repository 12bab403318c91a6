package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCollection = "funnels"

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id, err := s.Add(ctx, testCollection, map[string]interface{}{
		"name": "Spring Sale",
		"data": map[string]interface{}{"questions": []interface{}{}, "tracking": "utm=1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	doc, err := s.Get(ctx, testCollection, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "Spring Sale", doc.StringField("name"))

	err = s.Update(ctx, testCollection, id, map[string]interface{}{
		"data": map[string]interface{}{"tracking": "utm=2"},
	})
	require.NoError(t, err)

	doc, err = s.Get(ctx, testCollection, id)
	require.NoError(t, err)
	assert.Equal(t, "Spring Sale", doc.StringField("name"), "update leaves other fields untouched")
	assert.Equal(t, map[string]interface{}{"tracking": "utm=2"}, doc.Fields["data"], "update replaces the whole field")

	require.NoError(t, s.Delete(ctx, testCollection, id))
	_, err = s.Get(ctx, testCollection, id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, testCollection, id), "delete is idempotent")
}

func TestMemoryStore_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	docs, err := s.List(ctx, testCollection)
	require.NoError(t, err)
	assert.Empty(t, docs)

	first, _ := s.Add(ctx, testCollection, map[string]interface{}{"name": "a"})
	second, _ := s.Add(ctx, testCollection, map[string]interface{}{"name": "b"})
	third, _ := s.Add(ctx, testCollection, map[string]interface{}{"name": "c"})
	require.NoError(t, s.Delete(ctx, testCollection, second))

	docs, err = s.List(ctx, testCollection)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, first, docs[0].ID)
	assert.Equal(t, third, docs[1].ID)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, testCollection, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.Update(ctx, testCollection, "missing", map[string]interface{}{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_DocumentsAreCopied(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	fields := map[string]interface{}{"name": "original"}
	id, err := s.Add(ctx, testCollection, fields)
	require.NoError(t, err)
	fields["name"] = "mutated by caller"

	doc, err := s.Get(ctx, testCollection, id)
	require.NoError(t, err)
	doc.Fields["name"] = "mutated after read"

	again, err := s.Get(ctx, testCollection, id)
	require.NoError(t, err)
	assert.Equal(t, "original", again.StringField("name"))
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore()

	_, err := s.Add(ctx, testCollection, map[string]interface{}{})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.List(ctx, testCollection)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToFields(t *testing.T) {
	type payload struct {
		Name  string   `json:"name"`
		Count int      `json:"count"`
		Tags  []string `json:"tags"`
	}

	fields, err := ToFields(payload{Name: "x", Count: 2, Tags: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"name":  "x",
		"count": float64(2),
		"tags":  []interface{}{"a"},
	}, fields)
}

func TestDocument_FieldJSON(t *testing.T) {
	doc := Document{Fields: map[string]interface{}{"data": map[string]interface{}{"tracking": "a=1"}, "empty": nil}}

	raw, err := doc.FieldJSON("data")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tracking":"a=1"}`, string(raw))

	raw, err = doc.FieldJSON("empty")
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = doc.FieldJSON("missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}
