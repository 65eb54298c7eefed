package chatbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"insurease-backend/internal/compare"
	"insurease-backend/internal/shared/metrics"
	"insurease-backend/internal/shared/telemetry"
)

var (
	ErrEmptyQuestion  = errors.New("question must not be empty")
	ErrInvalidCompare = errors.New("policy1, policy2 and query are required")
	ErrIndexNotBuilt  = errors.New("policy index has not been built")
)

// Index answers free-form questions over every indexed policy.
type Index interface {
	Answer(ctx context.Context, question string) (string, error)
	Documents() map[string][]string
}

// BuildFunc produces a fresh Index from the current policy store contents.
type BuildFunc func(ctx context.Context) (Index, error)

type Comparer interface {
	Compare(ctx context.Context, policy1, policy2, query string) (string, error)
}

type Service struct {
	Build   BuildFunc
	Compare Comparer

	mu    sync.RWMutex
	index Index
	group singleflight.Group
}

func NewService(build BuildFunc, comparer Comparer) *Service {
	return &Service{Build: build, Compare: comparer}
}

// SetIndex swaps the index used by Ask.
func (s *Service) SetIndex(idx Index) {
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
	metrics.IndexBuilt(countDocuments(idx))
}

func (s *Service) current() Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Reindex rebuilds the index and returns the number of policies it covers.
// Concurrent callers share one build, which outlives any caller that gives up.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.Build == nil {
		return 0, ErrIndexNotBuilt
	}
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("build", func() (any, error) {
		start := time.Now()
		idx, err := s.Build(buildCtx)
		if err != nil {
			return nil, err
		}
		s.SetIndex(idx)
		telemetry.Info("chatbot.reindex", map[string]any{
			"documents":   countDocuments(idx),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return idx, nil
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return countDocuments(res.Val.(Index)), nil
	}
}

// Ask routes question through the policy index.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	metrics.IncQuestion()
	idx, err := s.ensureIndex(ctx)
	if err != nil {
		metrics.IncQuestionFailed()
		return "", err
	}
	start := time.Now()
	answer, err := idx.Answer(ctx, question)
	metrics.ObserveLLMDuration(time.Since(start))
	if err != nil {
		metrics.IncQuestionFailed()
		return "", err
	}
	return answer, nil
}

// ensureIndex builds the index on first use when startup indexing was skipped.
func (s *Service) ensureIndex(ctx context.Context) (Index, error) {
	if idx := s.current(); idx != nil {
		return idx, nil
	}
	if s.Build == nil {
		return nil, ErrIndexNotBuilt
	}
	if _, err := s.Reindex(ctx); err != nil {
		return nil, err
	}
	if idx := s.current(); idx != nil {
		return idx, nil
	}
	return nil, ErrIndexNotBuilt
}

// ComparePolicies compares two "<company>/<policy>" documents. Load and
// completion failures come back as the answer text; only unexpected errors
// are returned.
func (s *Service) ComparePolicies(ctx context.Context, policy1, policy2, query string) (string, error) {
	policy1 = strings.TrimSpace(policy1)
	policy2 = strings.TrimSpace(policy2)
	if policy1 == "" || policy2 == "" || strings.TrimSpace(query) == "" {
		return "", ErrInvalidCompare
	}
	metrics.IncComparison()
	start := time.Now()
	answer, err := s.Compare.Compare(ctx, policy1, policy2, query)
	metrics.ObserveLLMDuration(time.Since(start))
	if err == nil {
		return answer, nil
	}
	metrics.IncComparisonFailed()

	var loadErr *compare.LoadError
	var completionErr *compare.CompletionError
	switch {
	case errors.As(err, &loadErr):
		telemetry.Warn("chatbot.compare_load_failed", map[string]any{"file": loadErr.File, "error": loadErr.Err})
		return "Error: " + loadErr.Error(), nil
	case errors.As(err, &completionErr):
		telemetry.Warn("chatbot.compare_failed", map[string]any{"error": completionErr.Err})
		return completionErr.Error(), nil
	default:
		return "", err
	}
}

func countDocuments(idx Index) int {
	if idx == nil {
		return 0
	}
	n := 0
	for _, policies := range idx.Documents() {
		n += len(policies)
	}
	return n
}
