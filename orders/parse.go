package orders

import (
	"regexp"
	"strconv"
	"strings"
)

var rawItemRe = regexp.MustCompile(`(.+?)\s*[-=:]\s*([\d.]+)`)

// salesAreaKeywords mark a line that names the sales area.
var salesAreaKeywords = []string{"sales area", "billing city", "delivery area", "city"}

// ParseRawItems reads "name - qty", "name = qty" and "name : qty" lines.
// Lines without that shape, or whose quantity is not a number, are skipped.
// Units are left blank for the matcher to fill.
func ParseRawItems(message string) []Item {
	var items []Item
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := rawItemRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(m[2]), 64)
		if err != nil {
			continue
		}
		items = append(items, Item{Item: strings.TrimSpace(m[1]), Quantity: qty})
	}
	return items
}

// ExtractOrderDetails reads the line-oriented reply of the extraction prompt:
//
//	Customer Name: ...
//	Expected Delivery: ...
//	Ordered Date: ...
//	Sales Area: ...
//	- Item 1: <name>
//	Quantity: <n>
//	UOM: <unit>
//
// A negative quantity or exactly 0.5 is read as 1; an unparseable quantity is 0.
func ExtractOrderDetails(text string) *ParsedOrder {
	parsed := &ParsedOrder{Items: []Item{}}

	var current Item
	open := false
	flush := func() {
		if open {
			parsed.Items = append(parsed.Items, current)
		}
		current, open = Item{}, false
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		value, hasValue := afterColon(line)

		switch {
		case strings.HasPrefix(lower, "customer name"):
			if hasValue {
				parsed.CustomerName = value
			}
		case strings.HasPrefix(lower, "expected delivery"):
			if hasValue {
				parsed.ExpectedDelivery = value
			}
		case strings.HasPrefix(lower, "ordered date"):
			if hasValue {
				parsed.OrderedDate = value
			}
		case strings.HasPrefix(lower, "sales area"):
			if hasValue {
				parsed.SalesArea = value
			}
		case strings.HasPrefix(lower, "- item"):
			if hasValue {
				flush()
				current.Item = value
				open = true
			}
		case strings.HasPrefix(lower, "quantity"):
			if hasValue {
				current.Quantity = normalizeQuantity(value)
				open = true
			}
		case strings.HasPrefix(lower, "uom"):
			if hasValue {
				current.UOM = value
				open = true
			}
		}
	}
	flush()
	return parsed
}

func normalizeQuantity(s string) float64 {
	qty, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	if qty < 0 || qty == 0.5 {
		return 1
	}
	return qty
}

// ExtractSalesArea returns the lowercased text after the colon on the first
// line mentioning a sales-area keyword, or "" when there is none.
func ExtractSalesArea(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		for _, kw := range salesAreaKeywords {
			if !strings.Contains(line, kw) {
				continue
			}
			if v, ok := afterColon(line); ok {
				return v
			}
		}
	}
	return ""
}

func afterColon(line string) (string, bool) {
	_, after, found := strings.Cut(line, ":")
	if !found {
		return "", false
	}
	return strings.TrimSpace(after), true
}
