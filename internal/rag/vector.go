package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"insurease-backend/internal/llm"
)

// DefaultTopK is the number of chunks retrieved per vector query.
const DefaultTopK = 2

var errEmbeddingMissing = errors.New("chunk has no embedding")

// Chunk is one embedded piece of a policy.
type Chunk struct {
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// Match is a chunk ranked against a query. Position is the chunk's place in the document.
type Match struct {
	Text     string
	Score    float64
	Position int
}

// VectorIndex ranks chunks by cosine similarity. Chunks is the persisted form; the
// chromem collection serves queries.
type VectorIndex struct {
	Chunks     []Chunk
	collection *chromem.Collection
}

// NewVectorIndex loads already embedded chunks into an in-memory collection.
func NewVectorIndex(ctx context.Context, chunks []Chunk) (*VectorIndex, error) {
	idx := &VectorIndex{Chunks: chunks}
	if len(chunks) == 0 {
		return idx, nil
	}
	collection, err := chromem.NewDB().CreateCollection("policy", nil, func(context.Context, string) ([]float32, error) {
		return nil, errEmbeddingMissing
	})
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   c.Text,
			Embedding: toFloat32(c.Embedding),
		}
	}
	if err := collection.AddDocuments(ctx, docs, defaultConcurrency); err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	idx.collection = collection
	return idx, nil
}

// BuildVectorIndex embeds every text in one batched call.
func BuildVectorIndex(ctx context.Context, embedder llm.Embedder, texts []string) (*VectorIndex, error) {
	if len(texts) == 0 {
		return &VectorIndex{}, nil
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vectors), len(texts))
	}
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{Text: text, Embedding: vectors[i]}
	}
	return NewVectorIndex(ctx, chunks)
}

// Texts returns the chunk texts in document order.
func (v *VectorIndex) Texts() []string {
	out := make([]string, len(v.Chunks))
	for i, c := range v.Chunks {
		out[i] = c.Text
	}
	return out
}

// Search returns the k chunks most similar to query, best first. Ties keep document order.
func (v *VectorIndex) Search(ctx context.Context, query []float64, k int) ([]Match, error) {
	if v.collection == nil || v.collection.Count() == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}
	k = min(k, v.collection.Count())
	results, err := v.collection.QueryEmbedding(ctx, toFloat32(query), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		pos, _ := strconv.Atoi(r.ID)
		matches[i] = Match{Text: r.Content, Score: float64(r.Similarity), Position: pos}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Position < matches[j].Position
	})
	return matches, nil
}

// Query embeds question and searches the index.
func (v *VectorIndex) Query(ctx context.Context, embedder llm.Embedder, question string, k int) ([]Match, error) {
	if len(v.Chunks) == 0 {
		return nil, nil
	}
	vectors, err := embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, errors.New("embed query: no vector returned")
	}
	return v.Search(ctx, vectors[0], k)
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}
