package orders

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	descriptionField = "description"
	candidateLimit   = 50
)

// candidateIndex pre-selects catalog entries that share a (fuzzy) token with
// the query, so large catalogs are not scanned in full for every item.
type candidateIndex struct {
	index bleve.Index
}

func candidateMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()
	descField := bleve.NewTextFieldMapping()
	descField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(descriptionField, descField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// newCandidateIndex indexes the cleaned descriptions in memory, keyed by
// catalog position.
func newCandidateIndex(cleaned []string) (*candidateIndex, error) {
	idx, err := bleve.NewMemOnly(candidateMapping())
	if err != nil {
		return nil, fmt.Errorf("create candidate index: %w", err)
	}
	batch := idx.NewBatch()
	for i, desc := range cleaned {
		if err := batch.Index(strconv.Itoa(i), map[string]interface{}{descriptionField: desc}); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index material %d: %w", i, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, fmt.Errorf("index materials: %w", err)
	}
	return &candidateIndex{index: idx}, nil
}

// candidates returns catalog positions in ascending order, or nil when
// nothing matched.
func (c *candidateIndex) candidates(cleaned string) ([]int, error) {
	q := bleve.NewMatchQuery(cleaned)
	q.SetField(descriptionField)
	q.SetFuzziness(1)

	req := bleve.NewSearchRequestOptions(q, candidateLimit, 0, false)
	res, err := c.index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if i, err := strconv.Atoi(hit.ID); err == nil {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (c *candidateIndex) Close() error {
	return c.index.Close()
}
