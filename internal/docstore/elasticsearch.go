package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// listPageSize bounds one List call; a funnel collection is far below it.
const listPageSize = 1000

// replaceFieldsScript assigns each top-level param onto the stored source,
// unlike a partial "doc" update, which would merge nested objects.
const replaceFieldsScript = `for (entry in params.entrySet()) { ctx._source[entry.getKey()] = entry.getValue(); }`

// ElasticsearchStore keeps each collection in its own index named
// <prefix><collection>. Writes refresh the index so reads observe them.
type ElasticsearchStore struct {
	client *elasticsearch.Client
	prefix string
}

func NewElasticsearchStore(client *elasticsearch.Client, indexPrefix string) *ElasticsearchStore {
	return &ElasticsearchStore{client: client, prefix: indexPrefix}
}

func (s *ElasticsearchStore) index(collection string) string {
	return s.prefix + collection
}

func (s *ElasticsearchStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	id := uuid.New().String()
	req := esapi.IndexRequest{
		Index:      s.index(collection),
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return "", fmt.Errorf("elasticsearch index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", responseError("index", res)
	}
	return id, nil
}

type getResponse struct {
	ID     string                 `json:"_id"`
	Found  bool                   `json:"found"`
	Source map[string]interface{} `json:"_source"`
}

func (s *ElasticsearchStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	req := esapi.GetRequest{
		Index:      s.index(collection),
		DocumentID: id,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch get: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if res.IsError() {
		return nil, responseError("get", res)
	}

	var got getResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		return nil, fmt.Errorf("elasticsearch get: decode response: %w", err)
	}
	if !got.Found {
		return nil, ErrNotFound
	}
	if got.Source == nil {
		got.Source = map[string]interface{}{}
	}
	return &Document{ID: got.ID, Fields: got.Source}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string                 `json:"_id"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ElasticsearchStore) List(ctx context.Context, collection string) ([]Document, error) {
	query, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  []interface{}{"_doc"},
	})
	size := listPageSize

	req := esapi.SearchRequest{
		Index: []string{s.index(collection)},
		Body:  bytes.NewReader(query),
		Size:  &size,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer res.Body.Close()

	// the index is created by the first Add
	if res.StatusCode == http.StatusNotFound {
		return []Document{}, nil
	}
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var found searchResponse
	if err := json.NewDecoder(res.Body).Decode(&found); err != nil {
		return nil, fmt.Errorf("elasticsearch search: decode response: %w", err)
	}

	docs := make([]Document, 0, len(found.Hits.Hits))
	for _, hit := range found.Hits.Hits {
		fields := hit.Source
		if fields == nil {
			fields = map[string]interface{}{}
		}
		docs = append(docs, Document{ID: hit.ID, Fields: fields})
	}
	return docs, nil
}

func (s *ElasticsearchStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"script": map[string]interface{}{
			"source": replaceFieldsScript,
			"lang":   "painless",
			"params": fields,
		},
	})
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:      s.index(collection),
		DocumentID: id,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("elasticsearch update: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.IsError() {
		return responseError("update", res)
	}
	return nil
}

func (s *ElasticsearchStore) Delete(ctx context.Context, collection, id string) error {
	req := esapi.DeleteRequest{
		Index:      s.index(collection),
		DocumentID: id,
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("delete", res)
	}
	return nil
}

func responseError(operation string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("elasticsearch %s: %s: %s", operation, res.Status(), bytes.TrimSpace(body))
}
