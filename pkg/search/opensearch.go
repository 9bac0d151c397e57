// Package search indexes document text chunks in OpenSearch so uploaded
// regulations and reports are findable by content, not just title.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"
)

// Indexer is the search surface the document service needs.
type Indexer interface {
	// IndexChunks writes one search document per text chunk of docID,
	// replacing any chunks from an earlier version.
	IndexChunks(ctx context.Context, docID int64, title string, chunks []string) error
	DeleteDocument(ctx context.Context, docID int64) error
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// Hit is one search result chunk.
type Hit struct {
	DocID int64   `json:"doc_id"`
	Title string  `json:"title"`
	Chunk string  `json:"chunk"`
	Score float64 `json:"score"`
}

// Config holds OpenSearch connection settings.
type Config struct {
	Addresses   []string
	Username    string
	Password    string
	IndexPrefix string
}

type openSearchIndexer struct {
	client *opensearch.Client
	index  string
	logger *zap.Logger
}

// NewIndexer creates an OpenSearch-backed Indexer.
func NewIndexer(cfg Config, logger *zap.Logger) (Indexer, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}

	return &openSearchIndexer{
		client: client,
		index:  cfg.IndexPrefix + "-documents",
		logger: logger.Named("search-index"),
	}, nil
}

var _ Indexer = (*openSearchIndexer)(nil)

type chunkDocument struct {
	DocID    int64  `json:"doc_id"`
	Title    string `json:"title"`
	ChunkNum int    `json:"chunk_num"`
	Chunk    string `json:"chunk"`
}

func (i *openSearchIndexer) IndexChunks(ctx context.Context, docID int64, title string, chunks []string) error {
	// Re-uploads replace the previous version's chunks.
	if err := i.DeleteDocument(ctx, docID); err != nil {
		return err
	}

	for n, chunk := range chunks {
		payload, err := json.Marshal(chunkDocument{
			DocID:    docID,
			Title:    title,
			ChunkNum: n,
			Chunk:    chunk,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal search chunk: %w", err)
		}

		req := opensearchapi.IndexRequest{
			Index:      i.index,
			DocumentID: fmt.Sprintf("%d-%d", docID, n),
			Body:       bytes.NewReader(payload),
		}
		res, err := req.Do(ctx, i.client)
		if err != nil {
			return fmt.Errorf("failed to index search chunk: %w", err)
		}
		if err := drainResponse(res, "index chunk"); err != nil {
			return err
		}
	}

	i.logger.Info("document indexed",
		zap.Int64("doc_id", docID),
		zap.Int("chunks", len(chunks)))
	return nil
}

func (i *openSearchIndexer) DeleteDocument(ctx context.Context, docID int64) error {
	body := fmt.Sprintf(`{"query":{"term":{"doc_id":%d}}}`, docID)

	req := opensearchapi.DeleteByQueryRequest{
		Index: []string{i.index},
		Body:  strings.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("failed to delete document from index: %w", err)
	}
	// A 404 just means the index does not exist yet.
	if res.StatusCode == 404 {
		res.Body.Close()
		return nil
	}
	return drainResponse(res, "delete document")
}

func (i *openSearchIndexer) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	body, err := json.Marshal(map[string]any{
		"size": limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"title^2", "chunk"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("search returned %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64       `json:"_score"`
				Source chunkDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{
			DocID: h.Source.DocID,
			Title: h.Source.Title,
			Chunk: h.Source.Chunk,
			Score: h.Score,
		})
	}
	return hits, nil
}

func drainResponse(res *opensearchapi.Response, op string) error {
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("failed to %s: %s: %s", op, res.Status(), string(msg))
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
