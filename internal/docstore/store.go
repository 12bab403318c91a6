// Package docstore is the document store adapter: collections of JSON
// documents keyed by a store-generated id.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get and Update when no document has the id.
var ErrNotFound = errors.New("document not found")

// Document is one stored JSON object. Fields never contains the id.
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Store is implemented by every backend. Any error other than ErrNotFound
// means the backend could not be reached or refused the operation.
type Store interface {
	// Add stores fields as a new document and returns its generated id.
	Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	// Update replaces the given top-level fields, leaving the others untouched.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// Delete succeeds when the document is already gone.
	Delete(ctx context.Context, collection, id string) error
}

// ToFields converts v into plain JSON values (maps, slices, strings,
// float64, bool) through its JSON encoding.
func ToFields(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// FieldJSON returns the JSON encoding of one field, or nil when absent.
func (d Document) FieldJSON(name string) ([]byte, error) {
	v, ok := d.Fields[name]
	if !ok || v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// StringField returns a string field, or "" when absent or not a string.
func (d Document) StringField(name string) string {
	s, _ := d.Fields[name].(string)
	return s
}
