// Package qdrant is a minimal REST client for a Qdrant collection.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/manualqa/internal/manual"
	"github.com/dgallion1/manualqa/internal/vectorstore"
)

// Payload keys holding the chunk itself. All other keys are flat metadata.
const (
	payloadChunkID = "chunk_id"
	payloadText    = "text"
)

var errCollectionMissing = errors.New("collection does not exist")

// Store keeps chunks as points in one cosine-distance collection. Point ids
// are UUIDs derived from the chunk id, since Qdrant only accepts UUIDs and
// unsigned integers.
type Store struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client

	mu        sync.RWMutex
	dimension int
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func New(cfg Config) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Store{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// PointID maps a chunk id to its stable point id.
func (s *Store) PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.collection+"/"+chunkID)).String()
}

func (s *Store) collectionURL() string {
	return s.baseURL + "/collections/" + s.collection
}

// Init creates the collection if it is missing. An existing collection must
// have the same vector size.
func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == dimension {
		return nil
	}

	existing, err := s.describe(ctx)
	switch {
	case err == nil && existing == dimension:
		s.dimension = dimension
		return nil
	case err == nil:
		return fmt.Errorf("%w: collection %s has %d, got %d", vectorstore.ErrDimensionMismatch, s.collection, existing, dimension)
	case !errors.Is(err, errCollectionMissing):
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.dimension = dimension
	return nil
}

// describe returns the vector size of the collection.
func (s *Store) describe(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Config.Params.Vectors.Size, nil
}

// knownDimension returns the cached dimension, asking the server once if the
// collection was created by another process.
func (s *Store) knownDimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	d := s.dimension
	s.mu.RUnlock()
	if d != 0 {
		return d, nil
	}
	d, err := s.describe(ctx)
	if errors.Is(err, errCollectionMissing) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.dimension = d
	s.mu.Unlock()
	return d, nil
}

func (s *Store) Upsert(ctx context.Context, records []vectorstore.Record) error {
	s.mu.RLock()
	dim := s.dimension
	s.mu.RUnlock()

	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		if err := vectorstore.CheckDimension(dim, r.Embedding); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		payload := make(map[string]any, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[payloadChunkID] = r.ID
		payload[payloadText] = r.Text
		points = append(points, map[string]any{
			"id":      s.PointID(r.ID),
			"vector":  r.Embedding,
			"payload": payload,
		})
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upsert points: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float64, k int, filter vectorstore.Filter) ([]vectorstore.Hit, error) {
	dim, err := s.knownDimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if err := vectorstore.CheckDimension(dim, vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		md := make(manual.Record, len(r.Payload))
		var id, text string
		for key, v := range r.Payload {
			switch key {
			case payloadChunkID:
				id, _ = v.(string)
			case payloadText:
				text, _ = v.(string)
			default:
				md[key] = v
			}
		}
		hits = append(hits, vectorstore.Hit{ID: id, Text: text, Metadata: md, Score: r.Score})
	}
	return hits, nil
}

// buildFilter turns an equality filter into a Qdrant "must" clause list,
// sorted by key so requests are reproducible.
func buildFilter(f vectorstore.Filter) map[string]any {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	must := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": f[k]},
		})
	}
	return map[string]any{"must": must}
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"exact": true}, &resp)
	if errors.Is(err, errCollectionMissing) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return resp.Result.Count, nil
}

// Clear drops the collection. It is recreated by the next Init.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	if err != nil && !errors.Is(err, errCollectionMissing) {
		return fmt.Errorf("drop collection: %w", err)
	}
	s.dimension = 0
	return nil
}

// Close releases resources.
func (s *Store) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *Store) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		httpReq.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("qdrant %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errCollectionMissing
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, url, resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
