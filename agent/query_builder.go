package agent

import (
	"context"
	"fmt"
	"strings"

	"fleetwise/config"
	apperrors "fleetwise/errors"
	"fleetwise/prompts"
	"fleetwise/query"
	"fleetwise/schema"
	"fleetwise/web/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// tripKeywords gate the status vocabulary mapper.
var tripKeywords = []string{"trip", "trips", "tripplanners"}

// Synthesizer turns a user question into a candidate MongoDB shell query by
// grounding the completion service in the live schema catalog.
type Synthesizer struct {
	cfg        *config.Config
	llm        Completer
	inferencer *schema.Inferencer
	sanitizer  *query.Sanitizer
	logger     *zap.Logger
}

// NewSynthesizer creates a synthesizer sampling schema from store.
func NewSynthesizer(cfg *config.Config, llm Completer, store schema.Store, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		cfg:        cfg,
		llm:        llm,
		inferencer: schema.NewInferencer(store, cfg.SchemaFieldCap, cfg.SchemaExpandCollection, logger),
		sanitizer:  query.NewSanitizer(cfg.BusinessCodeFields),
		logger:     logger,
	}
}

// Synthesize returns the cleaned candidate query for question. The result has
// not been validated; callers gate it with query.IsValid.
func (s *Synthesizer) Synthesize(ctx context.Context, question, history string) (string, error) {
	var schemaText, mapped string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		catalog, err := s.inferencer.Build(gctx)
		if err != nil {
			return err
		}
		schemaText, err = catalog.Truncated(s.cfg.SchemaCharBudget)
		return err
	})
	g.Go(func() error {
		mapped = question
		if mentionsAny(question, tripKeywords) {
			mapped = query.MapStatus(question)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", apperrors.Kind(apperrors.ErrSynthesis, fmt.Errorf("build schema catalog: %w", err))
	}

	prompt := prompts.Render(prompts.QuerySynthesis(), map[string]string{
		"schema":   schemaText,
		"history":  history,
		"question": mapped,
	})
	raw, err := s.llm.Chat(ctx, []types.AgentMessage{{Role: types.RoleUser, Content: prompt}})
	if err != nil {
		return "", apperrors.Kind(apperrors.ErrSynthesis, err)
	}
	s.logger.Debug("Raw synthesis output", zap.String("raw", raw))

	candidate := s.sanitizer.Clean(raw, question)
	if candidate == query.NoQueryFound {
		return "", apperrors.Kind(apperrors.ErrSynthesis, fmt.Errorf("no query in completion output"))
	}
	return candidate, nil
}

// mentionsAny reports whether the lowercased text contains any keyword.
func mentionsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
