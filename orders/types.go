// Package orders turns free-form order messages into structured line items
// resolved against a reference catalog of materials and customers.
package orders

// Item is one order line.
type Item struct {
	Item     string  `json:"item" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	UOM      string  `json:"uom"`
}

// Material is a reference catalog entry.
type Material struct {
	Description string `json:"description"`
	UOM         string `json:"uom"`
}

// Customer is a reference customer and the city used as its sales area.
type Customer struct {
	Name      string `json:"customer_name"`
	SalesArea string `json:"sales_area"`
}

// Catalog is the reference sheet: materials and customers.
type Catalog struct {
	Materials []Material
	Customers []Customer
}

// ParsedOrder is the structured form of an order message.
type ParsedOrder struct {
	CustomerName     string `json:"customer_name"`
	SalesArea        string `json:"sales_area"`
	ExpectedDelivery string `json:"expected_delivery"`
	OrderedDate      string `json:"ordered_date"`
	Items            []Item `json:"items"`
}

// Order is the payload produced when a draft is submitted.
type Order struct {
	CustomerName     string `json:"customer_name"`
	SalesArea        string `json:"sales_area"`
	ExpectedDelivery string `json:"expected_delivery"`
	OrderedDate      string `json:"ordered_date"`
	Items            []Item `json:"items" validate:"required,min=1,dive"`
}
