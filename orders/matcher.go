package orders

import (
	"strings"

	"fleetwise/metrics"

	"go.uber.org/zap"
)

// DefaultMatchThreshold is the minimum token-sort score for accepting a catalog match.
const DefaultMatchThreshold = 80

// Matcher resolves rough item names to catalog materials. It is read-only
// after construction and safe for concurrent use.
type Matcher struct {
	materials []Material
	cleaned   []string
	threshold float64
	index     *candidateIndex
	logger    *zap.Logger
}

// NewMatcher precomputes cleaned descriptions. Catalogs larger than
// blockingThreshold also get a candidate index; zero disables it.
func NewMatcher(materials []Material, threshold float64, blockingThreshold int, logger *zap.Logger) *Matcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	m := &Matcher{
		materials: materials,
		cleaned:   make([]string, len(materials)),
		threshold: threshold,
		logger:    logger,
	}
	for i, mat := range materials {
		m.cleaned[i] = CleanText(mat.Description)
	}

	if blockingThreshold > 0 && len(materials) > blockingThreshold {
		idx, err := newCandidateIndex(m.cleaned)
		if err != nil {
			logger.Warn("Candidate index unavailable, using full scan", zap.Error(err))
		} else {
			m.index = idx
		}
	}
	return m
}

// Close releases the candidate index, if any.
func (m *Matcher) Close() error {
	if m.index != nil {
		return m.index.Close()
	}
	return nil
}

// Best returns the highest-scoring material for name. The earliest entry wins ties.
func (m *Matcher) Best(name string) (Material, float64, bool) {
	cleaned := CleanText(name)
	positions := m.candidatePositions(cleaned)

	best, bestScore := -1, 0.0
	for _, i := range positions {
		score := TokenSortRatio(cleaned, m.cleaned[i])
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Material{}, 0, false
	}
	return m.materials[best], bestScore, true
}

func (m *Matcher) candidatePositions(cleaned string) []int {
	if m.index != nil && cleaned != "" {
		positions, err := m.index.candidates(cleaned)
		if err != nil {
			m.logger.Warn("Candidate search failed, using full scan", zap.Error(err))
		} else if len(positions) > 0 {
			return positions
		}
	}
	all := make([]int, len(m.materials))
	for i := range all {
		all[i] = i
	}
	return all
}

// Match resolves each item. Items with an empty name or a non-positive
// quantity are dropped. A match scoring at least the threshold replaces the
// name with the catalog description and the unit with the catalog unit (the
// item's own unit when the catalog has none); otherwise the item is kept as is.
func (m *Matcher) Match(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Item)
		uom := strings.TrimSpace(it.UOM)
		if name == "" || !(it.Quantity > 0) {
			continue
		}

		mat, score, ok := m.Best(name)
		if ok && score >= m.threshold {
			if mat.UOM != "" {
				uom = mat.UOM
			}
			out = append(out, Item{Item: mat.Description, Quantity: it.Quantity, UOM: uom})
			metrics.RecordItemMatch(true)
			continue
		}

		m.logger.Debug("No confident catalog match",
			zap.String("item", name),
			zap.Float64("score", score))
		out = append(out, Item{Item: name, Quantity: it.Quantity, UOM: uom})
		metrics.RecordItemMatch(false)
	}
	return out
}
