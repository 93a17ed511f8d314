package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/id"
	"invoicer/internal/domain/documents/invoice"
	"invoicer/internal/domain/vat"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// InvoiceLineResponse is one invoice line.
type InvoiceLineResponse struct {
	LineNo      int             `json:"lineNo"`
	ItemID      string          `json:"itemId"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	VATRate     decimal.Decimal `json:"vatRate"`
	NetAmount   decimal.Decimal `json:"netAmount"`
	VATAmount   decimal.Decimal `json:"vatAmount"`
}

// InvoiceResponse is the API view of an invoice.
type InvoiceResponse struct {
	BaseResponse
	InvoiceNumber string                `json:"invoiceNumber"`
	CustomerID    string                `json:"customerId"`
	IssueDate     string                `json:"issueDate"`
	DueDate       string                `json:"dueDate"`
	Currency      string                `json:"currency"`
	Status        invoice.Status        `json:"status"`
	VATTreatment  vat.Treatment         `json:"vatTreatment"`
	NetTotal      decimal.Decimal       `json:"netTotal"`
	VATTotal      decimal.Decimal       `json:"vatTotal"`
	GrossTotal    decimal.Decimal       `json:"grossTotal"`
	Notes         string                `json:"notes,omitempty"`
	IssuedAt      *time.Time            `json:"issuedAt,omitempty"`
	PaidAt        *time.Time            `json:"paidAt,omitempty"`
	CancelledAt   *time.Time            `json:"cancelledAt,omitempty"`
	Lines         []InvoiceLineResponse `json:"lines,omitempty"`
}

// FromInvoice maps invoice.Invoice to InvoiceResponse.
func FromInvoice(inv *invoice.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		BaseResponse:  FromBase(inv.BaseEntity),
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID.String(),
		IssueDate:     inv.IssueDate.Format(DateLayout),
		DueDate:       inv.DueDate.Format(DateLayout),
		Currency:      inv.Currency,
		Status:        inv.Status,
		VATTreatment:  inv.VATTreatment,
		NetTotal:      inv.NetTotal,
		VATTotal:      inv.VATTotal,
		GrossTotal:    inv.GrossTotal,
		Notes:         inv.Notes,
		IssuedAt:      inv.IssuedAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
	}
	for _, l := range inv.Lines {
		resp.Lines = append(resp.Lines, InvoiceLineResponse{
			LineNo:      l.LineNo,
			ItemID:      l.ItemID.String(),
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			VATRate:     l.VATRate,
			NetAmount:   l.NetAmount,
			VATAmount:   l.VATAmount,
		})
	}
	return resp
}

// InvoiceLineRequest is one requested line.
type InvoiceLineRequest struct {
	ItemID      string           `json:"itemId" binding:"required"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Description string           `json:"description"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
}

// CreateInvoiceRequest creates a draft invoice.
type CreateInvoiceRequest struct {
	CustomerID string               `json:"customerId" binding:"required"`
	IssueDate  string               `json:"issueDate"`
	DueDate    string               `json:"dueDate"`
	Currency   string               `json:"currency" binding:"required,len=3"`
	Notes      string               `json:"notes"`
	Lines      []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToInput converts the request to the service input.
func (r CreateInvoiceRequest) ToInput() (invoice.CreateInput, error) {
	customerID, err := parseID("customerId", r.CustomerID)
	if err != nil {
		return invoice.CreateInput{}, err
	}
	issueDate, err := parseDate("issueDate", r.IssueDate)
	if err != nil {
		return invoice.CreateInput{}, err
	}
	dueDate, err := parseDate("dueDate", r.DueDate)
	if err != nil {
		return invoice.CreateInput{}, err
	}

	in := invoice.CreateInput{
		CustomerID: customerID,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Currency:   r.Currency,
		Notes:      r.Notes,
		Lines:      make([]invoice.LineInput, 0, len(r.Lines)),
	}
	for i, l := range r.Lines {
		itemID, err := parseID(fmt.Sprintf("lines[%d].itemId", i), l.ItemID)
		if err != nil {
			return invoice.CreateInput{}, err
		}
		in.Lines = append(in.Lines, invoice.LineInput{
			ItemID:      itemID,
			Quantity:    l.Quantity,
			Description: l.Description,
			UnitPrice:   l.UnitPrice,
		})
	}
	return in, nil
}

// InvoiceListQuery holds list query parameters.
type InvoiceListQuery struct {
	CustomerID string `form:"customerId"`
	Status     string `form:"status"`
	DateFrom   string `form:"dateFrom"`
	DateTo     string `form:"dateTo"`
}

// Apply parses the query into filter.
func (q InvoiceListQuery) Apply(filter *invoice.ListFilter) error {
	if q.CustomerID != "" {
		customerID, err := parseID("customerId", q.CustomerID)
		if err != nil {
			return err
		}
		filter.CustomerID = &customerID
	}
	filter.Status = invoice.Status(q.Status)

	var err error
	if filter.DateFrom, err = parseDate("dateFrom", q.DateFrom); err != nil {
		return err
	}
	if filter.DateTo, err = parseDate("dateTo", q.DateTo); err != nil {
		return err
	}
	return nil
}

func parseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(raw)
	if err != nil {
		return id.ID{}, apperror.NewValidation("invalid "+field).WithDetail("field", field)
	}
	return v, nil
}

func parseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid "+field+", expected YYYY-MM-DD").WithDetail("field", field)
	}
	return &t, nil
}
