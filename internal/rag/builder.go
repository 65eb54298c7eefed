package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"insurease-backend/internal/extract"
	"insurease-backend/internal/llm"
	"insurease-backend/internal/shared/telemetry"
	"insurease-backend/internal/shared/util"
)

// Lister lists the stored policies per company.
type Lister interface {
	Structure(ctx context.Context) (map[string][]string, error)
}

// Builder indexes every stored policy and assembles the router.
type Builder struct {
	Lister         Lister
	Text           extract.Source
	Client         llm.Client
	Cache          IndexCache
	Splitter       SentenceSplitter
	EmbeddingModel string
	TopK           int
	ToolRetrieveK  int
	Concurrency    int
}

type docRef struct {
	company string
	policy  string
}

// Build walks every company and policy, loading persisted vector indexes whose content
// hash still matches and rebuilding the rest. Any failing document aborts the build.
func (b *Builder) Build(ctx context.Context) (*Router, error) {
	start := time.Now()
	structure, err := b.Lister.Structure(ctx)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}

	var docs []docRef
	companies := make([]string, 0, len(structure))
	for company := range structure {
		companies = append(companies, company)
	}
	sort.Strings(companies)
	for _, company := range companies {
		for _, policy := range structure[company] {
			docs = append(docs, docRef{company: company, policy: policy})
		}
	}

	parallel := b.Concurrency
	if parallel <= 0 {
		parallel = defaultConcurrency
	}
	agents := make([]*DocumentAgent, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, d := range docs {
		g.Go(func() error {
			agent, err := b.buildAgent(gctx, d.company, d.policy)
			if err != nil {
				return fmt.Errorf("index %s/%s: %w", d.company, d.policy, err)
			}
			agents[i] = agent
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	router, err := NewRouter(ctx, agents, b.Client, b.ToolRetrieveK)
	if err != nil {
		return nil, err
	}
	telemetry.Info("rag.build_complete", map[string]any{
		"documents":   len(agents),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return router, nil
}

func (b *Builder) buildAgent(ctx context.Context, company, policy string) (*DocumentAgent, error) {
	text, err := b.Text(ctx, company, policy)
	if err != nil {
		return nil, err
	}
	size, overlap := b.Splitter.params()
	key := CacheKey{
		ContentHash:    util.SHA256Hex([]byte(text)),
		EmbeddingModel: b.EmbeddingModel,
		ChunkSize:      size,
		ChunkOverlap:   overlap,
	}

	vector, ok, err := b.Cache.Load(ctx, company, policy, key)
	if err != nil {
		return nil, err
	}
	if ok {
		telemetry.Info("rag.index_loaded", map[string]any{
			"insurance_name": company,
			"policy_name":    policy,
			"chunks":         len(vector.Chunks),
		})
	} else {
		vector, err = BuildVectorIndex(ctx, b.Client, b.Splitter.Split(text))
		if err != nil {
			return nil, err
		}
		if err := b.Cache.Save(company, policy, key, vector); err != nil {
			return nil, err
		}
		telemetry.Info("rag.index_built", map[string]any{
			"insurance_name": company,
			"policy_name":    policy,
			"chunks":         len(vector.Chunks),
		})
	}

	topK := b.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	summary := &SummaryIndex{Chunks: vector.Texts()}
	return NewDocumentAgent(company, policy, vector, summary, b.Client, topK), nil
}
