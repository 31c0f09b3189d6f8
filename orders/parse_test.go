package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestParseRawItems(t *testing.T) {
	message := `Hi, please send
Full cream milk 500 ml - 10
Paneer = 2.5
Curd cup : 4

Thanks
Ghee - 1.2.3`

	got := ParseRawItems(message)
	assert.Equal(t, []Item{
		{Item: "Full cream milk 500 ml", Quantity: 10},
		{Item: "Paneer", Quantity: 2.5},
		{Item: "Curd cup", Quantity: 4},
	}, got)
}

func TestExtractOrderDetails(t *testing.T) {
	reply := `Customer Name: Aavin Depot 1
Sales Area: Chennai
Expected Delivery: 12/05/2025
Ordered Date: 10/05/2025
- Item 1: Full Cream Milk 500ml
Quantity: 10
UOM: Packet
- Item 2: Paneer 200g
Quantity: 0.5
UOM: Pack
- Item 3: Curd Cup 100g
Quantity: -3
UOM: Cup
- Item 4: Butter
Quantity: lots
UOM: Box`

	got := ExtractOrderDetails(reply)
	assert.Equal(t, "Aavin Depot 1", got.CustomerName)
	assert.Equal(t, "Chennai", got.SalesArea)
	assert.Equal(t, "12/05/2025", got.ExpectedDelivery)
	assert.Equal(t, "10/05/2025", got.OrderedDate)
	assert.Equal(t, []Item{
		{Item: "Full Cream Milk 500ml", Quantity: 10, UOM: "Packet"},
		{Item: "Paneer 200g", Quantity: 1, UOM: "Pack"},
		{Item: "Curd Cup 100g", Quantity: 1, UOM: "Cup"},
		{Item: "Butter", Quantity: 0, UOM: "Box"},
	}, got.Items)
}

func TestExtractedQuantitiesThroughMatcher(t *testing.T) {
	reply := `- Item 1: Paneer 200g
Quantity: 0.5
- Item 2: Curd Cup 100g
Quantity: 0
- Item 3: Toned Milk 1L
Quantity: abc`

	parsed := ExtractOrderDetails(reply)
	got := NewMatcher(testMaterials, 80, 0, zap.NewNop()).Match(parsed.Items)
	assert.Equal(t, []Item{{Item: "Paneer 200g", Quantity: 1}}, got)
}

func TestExtractSalesArea(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"sales area line", "Customer: X\nSales Area: Madurai", "madurai"},
		{"billing city", "Billing City : Coimbatore ", "coimbatore"},
		{"keyword without colon is skipped", "city of chennai\nDelivery Area: Salem", "salem"},
		{"none", "Customer Name: X", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSalesArea(tt.text))
		})
	}
}
