package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"insurease-backend/internal/shared/telemetry"
)

const indexFormatVersion = 1

// CacheKey identifies the inputs a persisted index was built from.
type CacheKey struct {
	ContentHash    string
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
}

type indexFile struct {
	Version        int     `json:"version"`
	Company        string  `json:"company"`
	Policy         string  `json:"policy"`
	ContentHash    string  `json:"content_hash"`
	EmbeddingModel string  `json:"embedding_model"`
	ChunkSize      int     `json:"chunk_size"`
	ChunkOverlap   int     `json:"chunk_overlap"`
	Chunks         []Chunk `json:"chunks"`
}

func (f indexFile) key() CacheKey {
	return CacheKey{
		ContentHash:    f.ContentHash,
		EmbeddingModel: f.EmbeddingModel,
		ChunkSize:      f.ChunkSize,
		ChunkOverlap:   f.ChunkOverlap,
	}
}

// IndexCache persists vector indexes as <Dir>/<company>/<policy>_index.json.
// An empty Dir disables persistence.
type IndexCache struct {
	Dir string
}

func (c IndexCache) path(company, policy string) string {
	return filepath.Join(c.Dir, company, policy+"_index.json")
}

// Load returns the persisted index when it was built from the same inputs as key.
// Missing, unreadable or stale files report ok=false so the caller rebuilds.
func (c IndexCache) Load(ctx context.Context, company, policy string, key CacheKey) (*VectorIndex, bool, error) {
	if c.Dir == "" {
		return nil, false, nil
	}
	raw, err := os.ReadFile(c.path(company, policy))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read index: %w", err)
	}
	var f indexFile
	if err := json.Unmarshal(raw, &f); err != nil {
		telemetry.Warn("rag.index_corrupt", map[string]any{
			"insurance_name": company,
			"policy_name":    policy,
			"error":          err,
		})
		return nil, false, nil
	}
	if f.Version != indexFormatVersion || f.key() != key {
		return nil, false, nil
	}
	idx, err := NewVectorIndex(ctx, f.Chunks)
	if err != nil {
		telemetry.Warn("rag.index_corrupt", map[string]any{
			"insurance_name": company,
			"policy_name":    policy,
			"error":          err,
		})
		return nil, false, nil
	}
	return idx, true, nil
}

// Save writes the index atomically.
func (c IndexCache) Save(company, policy string, key CacheKey, idx *VectorIndex) error {
	if c.Dir == "" {
		return nil
	}
	target := c.path(company, policy)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir index dir: %w", err)
	}
	raw, err := json.Marshal(indexFile{
		Version:        indexFormatVersion,
		Company:        company,
		Policy:         policy,
		ContentHash:    key.ContentHash,
		EmbeddingModel: key.EmbeddingModel,
		ChunkSize:      key.ChunkSize,
		ChunkOverlap:   key.ChunkOverlap,
		Chunks:         idx.Chunks,
	})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(raw)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write index: %w", errors.Join(werr, cerr))
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}
