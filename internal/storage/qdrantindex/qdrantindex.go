// Package qdrantindex maintains a cross-namespace semantic index over the
// SHARED memory pool. Unlike per-namespace embeddings (pgvector columns
// committed in the same Postgres transaction as their owning memory row,
// see internal/storage/vector.go), SHARED rows are already copied out of
// namespace-scoped storage and are meant to be searched across every
// namespace at once — a separate, eventually-consistent index fits that
// access pattern without needing to share a transaction with any one
// namespace's schema.
package qdrantindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// idField stores the original SHARED memory id in the point payload;
// Qdrant point ids must be UUIDs or positive integers, and SHARED ids are
// neither in general.
const idField = "_shared_id"

// Result is one semantic match against the SHARED index.
type Result struct {
	ID    string
	Score float64
}

// Index wraps a Qdrant collection dedicated to SHARED memory vectors.
type Index struct {
	client     *qdrant.Client
	collection string
}

// New connects to Qdrant at dsn (host[:port] form, gRPC port defaults to
// 6334) and ensures the collection exists, grounded on the teacher's
// internal/persistence/databases/qdrant_vector.go NewQdrantVector/
// ensureCollection. dimension must match the embedder's output width.
func New(ctx context.Context, dsn, collection string, dimension int) (*Index, error) {
	if collection == "" {
		collection = "shared_memories"
	}
	raw := dsn
	if !strings.Contains(raw, "://") {
		// A bare host[:port] has no scheme; parse it as an authority.
		raw = "//" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = dsn
	}
	port := 6334
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
		}
	}
	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	idx := &Index{client: client, collection: collection}
	if err := idx.ensureCollection(ctx, dimension); err != nil {
		client.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureCollection(ctx context.Context, dimension int) error {
	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if dimension <= 0 {
		return fmt.Errorf("qdrant collection %q: dimension must be > 0", idx.collection)
	}
	err = idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: idx.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", idx.collection, err)
	}
	return nil
}

// pointID derives a deterministic UUID from a SHARED memory id.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert indexes one SHARED memory's embedding, with its owning namespace
// stored in the point payload. Search does not filter on that field.
func (idx *Index) Upsert(ctx context.Context, id string, vector []float32, namespace string) error {
	payload := qdrant.NewValueMap(map[string]any{
		idField:     id,
		"namespace": namespace,
	})
	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(id)),
		Vectors: qdrant.NewVectorsDense(vector),
		Payload: payload,
	}
	_, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: idx.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	return err
}

// Search returns the k SHARED memory ids whose vectors are nearest to vec.
func (idx *Index) Search(ctx context.Context, vec []float32, k int) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	limit := uint64(k)
	hits, err := idx.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search shared index: %w", err)
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		var id string
		if hit.Payload != nil {
			if v, ok := hit.Payload[idField]; ok {
				id = v.GetStringValue()
			}
		}
		if strings.TrimSpace(id) == "" {
			continue
		}
		out = append(out, Result{ID: id, Score: float64(hit.Score)})
	}
	return out, nil
}

// Close releases the underlying gRPC connection.
func (idx *Index) Close() error {
	return idx.client.Close()
}
