// Package invoice provides the Invoice document.
package invoice

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/entity"
	"invoicer/internal/core/id"
	"invoicer/internal/core/types"
	"invoicer/internal/domain/vat"
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusIssued    Status = "issued"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// transitions lists the allowed target states of every status.
var transitions = map[Status][]Status{
	StatusDraft:  {StatusIssued, StatusCancelled},
	StatusIssued: {StatusPaid, StatusCancelled},
}

// CanTransition reports whether s may move to target.
func (s Status) CanTransition(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// DefaultPaymentTermDays is used when no due date is given.
const DefaultPaymentTermDays = 14

// Invoice is a bill sent to a customer.
type Invoice struct {
	entity.BaseEntity

	// InvoiceNumber is allocated on creation (INV + YYMM + 6 digits) and never changes
	InvoiceNumber string `db:"invoice_number" json:"invoiceNumber" repo:"immutable"`

	CustomerID id.ID     `db:"customer_id" json:"customerId"`
	IssueDate  time.Time `db:"issue_date" json:"issueDate"`
	DueDate    time.Time `db:"due_date" json:"dueDate"`
	Currency   string    `db:"currency" json:"currency"`
	Status     Status    `db:"status" json:"status"`

	VATTreatment vat.Treatment `db:"vat_treatment" json:"vatTreatment"`

	// Totals (calculated from lines)
	NetTotal   types.Money `db:"net_total" json:"netTotal"`
	VATTotal   types.Money `db:"vat_total" json:"vatTotal"`
	GrossTotal types.Money `db:"gross_total" json:"grossTotal"`

	Notes string `db:"notes" json:"notes,omitempty"`

	IssuedAt    *time.Time `db:"issued_at" json:"issuedAt,omitempty"`
	PaidAt      *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	// Table part
	Lines []Line `db:"-" json:"lines"`
}

// Line is a row of the invoice.
type Line struct {
	LineID    id.ID `db:"line_id" json:"lineId"`
	InvoiceID id.ID `db:"invoice_id" json:"-"`
	LineNo    int   `db:"line_no" json:"lineNo"`

	ItemID      id.ID  `db:"item_id" json:"itemId"`
	Description string `db:"description" json:"description"`

	Quantity  decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice types.Money     `db:"unit_price" json:"unitPrice"`
	VATRate   decimal.Decimal `db:"vat_rate" json:"vatRate"`
	NetAmount types.Money     `db:"net_amount" json:"netAmount"`
	VATAmount types.Money     `db:"vat_amount" json:"vatAmount"`
}

// NewInvoice creates a draft invoice.
func NewInvoice(customerID id.ID, issueDate time.Time, currency string) *Invoice {
	issue := truncateDay(issueDate)
	return &Invoice{
		BaseEntity:   entity.NewBaseEntity(),
		CustomerID:   customerID,
		IssueDate:    issue,
		DueDate:      issue.AddDate(0, 0, DefaultPaymentTermDays),
		Currency:     strings.ToUpper(currency),
		Status:       StatusDraft,
		VATTreatment: vat.TreatmentStandard,
		NetTotal:     types.Zero(),
		VATTotal:     types.Zero(),
		GrossTotal:   types.Zero(),
		Lines:        make([]Line, 0),
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddLine appends a line taxed at vatRate percent and recalculates totals.
func (inv *Invoice) AddLine(itemID id.ID, description string, quantity decimal.Decimal, unitPrice types.Money, vatRate decimal.Decimal) {
	net := types.RoundMoney(quantity.Mul(unitPrice))
	inv.Lines = append(inv.Lines, Line{
		LineID:      id.New(),
		InvoiceID:   inv.ID,
		LineNo:      len(inv.Lines) + 1,
		ItemID:      itemID,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		VATRate:     vatRate,
		NetAmount:   net,
		VATAmount:   types.Percent(net, vatRate),
	})
	inv.recalculateTotals()
}

// recalculateTotals updates document totals from lines.
func (inv *Invoice) recalculateTotals() {
	inv.NetTotal = types.Zero()
	inv.VATTotal = types.Zero()
	for _, l := range inv.Lines {
		inv.NetTotal = inv.NetTotal.Add(l.NetAmount)
		inv.VATTotal = inv.VATTotal.Add(l.VATAmount)
	}
	inv.GrossTotal = inv.NetTotal.Add(inv.VATTotal)
}

// GetNumber implements entity.Numbered.
func (inv *Invoice) GetNumber() string { return inv.InvoiceNumber }

// SetNumber implements entity.Numbered.
func (inv *Invoice) SetNumber(number string) { inv.InvoiceNumber = number }

// Validate implements entity.Validatable.
func (inv *Invoice) Validate(ctx context.Context) error {
	if id.IsNil(inv.CustomerID) {
		return apperror.NewValidation("customer is required").
			WithDetail("field", "customerId")
	}

	if inv.IssueDate.IsZero() {
		return apperror.NewValidation("issue date is required").
			WithDetail("field", "issueDate")
	}

	if inv.DueDate.Before(inv.IssueDate) {
		return apperror.NewValidation("due date cannot be before issue date").
			WithDetail("field", "dueDate")
	}

	if len(inv.Currency) != 3 {
		return apperror.NewValidation("currency must be an ISO 4217 code").
			WithDetail("field", "currency")
	}

	if len(inv.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range inv.Lines {
		if id.IsNil(line.ItemID) {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// transition moves the invoice to target, stamping the matching timestamp.
func (inv *Invoice) transition(target Status, at time.Time) error {
	if !inv.Status.CanTransition(target) {
		return apperror.NewInvalidTransition("invoice", string(inv.Status), string(target)).
			WithDetail("invoiceNumber", inv.InvoiceNumber)
	}

	at = at.UTC()
	switch target {
	case StatusIssued:
		inv.IssuedAt = &at
	case StatusPaid:
		inv.PaidAt = &at
	case StatusCancelled:
		inv.CancelledAt = &at
	}
	inv.Status = target
	return nil
}

var (
	_ entity.Validatable = (*Invoice)(nil)
	_ entity.Numbered    = (*Invoice)(nil)
)
