package orders

import (
	"fmt"
	"strings"

	apperrors "fleetwise/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DraftItem is a visible draft line with its position in the working set.
type DraftItem struct {
	Index int `json:"index"`
	Item
}

// Draft is an order being reviewed before creation. The working set may hold
// lines with zero quantity (new blank lines, or lines edited down to zero);
// those are hidden and never submitted.
type Draft struct {
	CustomerName     string `json:"customer_name"`
	SalesArea        string `json:"sales_area"`
	ExpectedDelivery string `json:"expected_delivery"`
	OrderedDate      string `json:"ordered_date"`
	items            []Item
}

// NewDraft starts a draft from a parsed order.
func NewDraft(p *ParsedOrder) *Draft {
	d := &Draft{}
	if p == nil {
		return d
	}
	d.CustomerName = p.CustomerName
	d.SalesArea = p.SalesArea
	d.ExpectedDelivery = p.ExpectedDelivery
	d.OrderedDate = p.OrderedDate
	d.items = append([]Item(nil), p.Items...)
	return d
}

// DraftView is the editable state of a draft as shown to the user.
type DraftView struct {
	CustomerName     string      `json:"customer_name"`
	SalesArea        string      `json:"sales_area"`
	ExpectedDelivery string      `json:"expected_delivery"`
	OrderedDate      string      `json:"ordered_date"`
	Items            []DraftItem `json:"items"`
}

// View returns the header and visible lines.
func (d *Draft) View() DraftView {
	return DraftView{
		CustomerName:     d.CustomerName,
		SalesArea:        d.SalesArea,
		ExpectedDelivery: d.ExpectedDelivery,
		OrderedDate:      d.OrderedDate,
		Items:            d.Visible(),
	}
}

// Visible returns the lines with a positive quantity, in order.
func (d *Draft) Visible() []DraftItem {
	out := []DraftItem{}
	for i, it := range d.items {
		if it.Quantity > 0 {
			out = append(out, DraftItem{Index: i, Item: it})
		}
	}
	return out
}

// AddItem appends a line and returns its index. A zero-quantity line stays
// hidden until it is given a quantity.
func (d *Draft) AddItem(it Item) (int, error) {
	if it.Quantity < 0 {
		return 0, apperrors.Kind(apperrors.ErrInvalidInput, fmt.Errorf("quantity must not be negative"))
	}
	d.items = append(d.items, trimItem(it))
	return len(d.items) - 1, nil
}

// UpdateItem replaces the line at index.
func (d *Draft) UpdateItem(index int, it Item) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	if it.Quantity < 0 {
		return apperrors.Kind(apperrors.ErrInvalidInput, fmt.Errorf("quantity must not be negative"))
	}
	d.items[index] = trimItem(it)
	return nil
}

// DeleteItem removes the line at index. Later lines shift down by one.
func (d *Draft) DeleteItem(index int) error {
	if err := d.checkIndex(index); err != nil {
		return err
	}
	d.items = append(d.items[:index], d.items[index+1:]...)
	return nil
}

// SetHeader updates customer and sales area; nil leaves a field unchanged.
func (d *Draft) SetHeader(customerName, salesArea *string) {
	if customerName != nil {
		d.CustomerName = strings.TrimSpace(*customerName)
	}
	if salesArea != nil {
		d.SalesArea = strings.TrimSpace(*salesArea)
	}
}

// Order builds the order payload from the visible lines and validates it.
func (d *Draft) Order() (*Order, error) {
	order := &Order{
		CustomerName:     d.CustomerName,
		SalesArea:        d.SalesArea,
		ExpectedDelivery: d.ExpectedDelivery,
		OrderedDate:      d.OrderedDate,
		Items:            []Item{},
	}
	for _, v := range d.Visible() {
		order.Items = append(order.Items, v.Item)
	}
	if err := validate.Struct(order); err != nil {
		return nil, apperrors.Kind(apperrors.ErrInvalidInput, err)
	}
	return order, nil
}

func (d *Draft) checkIndex(index int) error {
	if index < 0 || index >= len(d.items) {
		return apperrors.Kind(apperrors.ErrNotFound, fmt.Errorf("no draft item at index %d", index))
	}
	return nil
}

func trimItem(it Item) Item {
	return Item{Item: strings.TrimSpace(it.Item), Quantity: it.Quantity, UOM: strings.TrimSpace(it.UOM)}
}
