package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "fleetwise/errors"
	"fleetwise/prompts"
	"fleetwise/web/types"

	"go.uber.org/zap"
)

// UnknownSalesArea is used when no sales area can be recovered.
const UnknownSalesArea = "Unknown"

// DefaultCustomerThreshold is the score a customer name must exceed to adopt
// that customer's sales area.
const DefaultCustomerThreshold = 70

// Completer is the completion service used for structured extraction.
type Completer interface {
	Chat(ctx context.Context, messages []types.AgentMessage) (string, error)
}

// Extractor parses order messages with the completion service, falling back
// to line parsing, and resolves items against the catalog.
type Extractor struct {
	llm               Completer
	catalog           *Catalog
	matcher           *Matcher
	customerThreshold float64
	logger            *zap.Logger
	now               func() time.Time
}

func NewExtractor(llm Completer, catalog *Catalog, matcher *Matcher, customerThreshold float64, logger *zap.Logger) *Extractor {
	if customerThreshold <= 0 {
		customerThreshold = DefaultCustomerThreshold
	}
	return &Extractor{
		llm:               llm,
		catalog:           catalog,
		matcher:           matcher,
		customerThreshold: customerThreshold,
		logger:            logger,
		now:               time.Now,
	}
}

// Parse returns a parsed order with matched items. When the completion call
// fails or yields no items, items come from ParseRawItems instead.
func (e *Extractor) Parse(ctx context.Context, message string) *ParsedOrder {
	parsed, err := e.ParseWithLLM(ctx, message)
	if err != nil {
		e.logger.Warn("Order extraction failed, parsing lines manually", zap.Error(err))
		parsed = &ParsedOrder{SalesArea: ExtractSalesArea(message)}
	}

	if len(parsed.Items) == 0 {
		e.logger.Info("No items extracted, using raw line parsing")
		parsed.Items = ParseRawItems(message)
	}
	parsed.Items = e.matcher.Match(parsed.Items)
	return parsed
}

// ParseWithLLM asks the completion service for the line-oriented order format
// and reads it back. A missing sales area is recovered from the reply text,
// then from the best matching customer, else set to UnknownSalesArea.
func (e *Extractor) ParseWithLLM(ctx context.Context, message string) (*ParsedOrder, error) {
	prompt, err := e.buildPrompt(message)
	if err != nil {
		return nil, err
	}

	reply, err := e.llm.Chat(ctx, []types.AgentMessage{{Role: types.RoleUser, Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("order extraction: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, apperrors.Kind(apperrors.ErrLLMCommunication, fmt.Errorf("empty order extraction reply"))
	}

	parsed := ExtractOrderDetails(reply)
	if parsed.SalesArea == "" {
		if area := ExtractSalesArea(reply); area != "" {
			parsed.SalesArea = area
		} else {
			parsed.SalesArea = e.ResolveSalesArea(parsed.CustomerName)
		}
	}
	return parsed, nil
}

// ResolveSalesArea returns the sales area of the customer whose name best
// matches name, if the score exceeds the threshold.
func (e *Extractor) ResolveSalesArea(name string) string {
	if e.catalog == nil || strings.TrimSpace(name) == "" {
		return UnknownSalesArea
	}
	best, bestScore := -1, 0.0
	for i, c := range e.catalog.Customers {
		if score := NameScore(name, c.Name); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 && bestScore > e.customerThreshold {
		return e.catalog.Customers[best].SalesArea
	}
	return UnknownSalesArea
}

func (e *Extractor) buildPrompt(message string) (string, error) {
	var materials []Material
	var customers []Customer
	if e.catalog != nil {
		materials, customers = e.catalog.Materials, e.catalog.Customers
	}
	if materials == nil {
		materials = []Material{}
	}
	if customers == nil {
		customers = []Customer{}
	}
	materialsJSON, err := json.MarshalIndent(materials, "", "  ")
	if err != nil {
		return "", err
	}
	customersJSON, err := json.MarshalIndent(customers, "", "  ")
	if err != nil {
		return "", err
	}
	return prompts.Render(prompts.OrderExtraction(), map[string]string{
		"today":     e.now().Format("02/01/2006"),
		"message":   message,
		"materials": string(materialsJSON),
		"customers": string(customersJSON),
	}), nil
}
