package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/id"
	"invoicer/internal/core/numerator"
	"invoicer/internal/core/tx"
	"invoicer/internal/core/types"
	"invoicer/internal/domain"
	"invoicer/internal/domain/catalogs/item"
	"invoicer/internal/domain/catalogs/user"
	"invoicer/internal/domain/vat"
	"invoicer/pkg/logger"
)

const entityName = "invoice"

// Event types written to the outbox.
const (
	EventCreated   = "InvoiceCreated"
	EventIssued    = "InvoiceIssued"
	EventPaid      = "InvoicePaid"
	EventCancelled = "InvoiceCancelled"
)

// NumberAllocator hands out invoice numbers on the transaction in ctx.
type NumberAllocator interface {
	AllocateInvoiceNumber(ctx context.Context) (string, error)
	TxOptions(kind numerator.Kind) tx.Options
}

// CustomerSource resolves invoice customers.
type CustomerSource interface {
	GetByID(ctx context.Context, userID id.ID) (*user.User, error)
}

// ItemSource resolves invoiced items.
type ItemSource interface {
	GetByID(ctx context.Context, itemID id.ID) (*item.Item, error)
}

// TaxCalculator decides the VAT treatment and line rates.
type TaxCalculator interface {
	Determine(ctx context.Context, customer vat.Customer) (vat.Treatment, string, error)
	RateFor(treatment vat.Treatment, category vat.Category) decimal.Decimal
}

// Deps groups the collaborators of Service.
type Deps struct {
	Repo      Repository
	TxManager tx.Manager
	Numbers   NumberAllocator
	Customers CustomerSource
	Items     ItemSource
	VAT       TaxCalculator
	Auditor   domain.Auditor        // optional
	Publisher domain.EventPublisher // optional
	Clock     numerator.Clock       // optional
}

// Service provides business operations for invoices.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numbers   NumberAllocator
	customers CustomerSource
	items     ItemSource
	vat       TaxCalculator
	auditor   domain.Auditor
	publisher domain.EventPublisher
	clock     numerator.Clock
	hooks     *domain.HookRegistry[*Invoice]
}

// NewService creates a new invoice service.
func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		txManager: d.TxManager,
		numbers:   d.Numbers,
		customers: d.Customers,
		items:     d.Items,
		vat:       d.VAT,
		auditor:   d.Auditor,
		publisher: d.Publisher,
		clock:     d.Clock,
		hooks:     domain.NewHookRegistry[*Invoice](),
	}
	if s.auditor == nil {
		s.auditor = domain.NopAuditor{}
	}
	if s.publisher == nil {
		s.publisher = domain.NopPublisher{}
	}
	if s.clock == nil {
		s.clock = numerator.SystemClock
	}
	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Invoice] {
	return s.hooks
}

// LineInput describes one line of a new invoice.
type LineInput struct {
	ItemID      id.ID
	Quantity    decimal.Decimal
	Description string
	// UnitPrice overrides the item price when set
	UnitPrice *types.Money
}

// CreateInput describes a new invoice.
type CreateInput struct {
	CustomerID id.ID
	IssueDate  *time.Time
	DueDate    *time.Time
	Currency   string
	Notes      string
	Lines      []LineInput
}

// Create builds a draft invoice from input, allocates its number and
// stores it in one transaction together with its audit and outbox records.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Invoice, error) {
	inv, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}

	if err := inv.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.BeforeCreate, inv); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransactionWith(ctx, s.numbers.TxOptions(numerator.KindInvoice), func(ctx context.Context) error {
		number, err := s.numbers.AllocateInvoiceNumber(ctx)
		if err != nil {
			return err
		}
		inv.SetNumber(number)

		if err := s.repo.Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		if err := s.auditor.Record(ctx, entityName, inv.ID, domain.AuditActionCreate, inv); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, s.event(EventCreated, inv))
	})
	if err != nil {
		inv.SetNumber("")
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, inv); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "invoice created",
		"id", inv.ID,
		"number", inv.InvoiceNumber,
		"gross_total", inv.GrossTotal.StringFixed(types.MoneyScale))

	return inv, nil
}

// build resolves customer and items and prices the lines.
func (s *Service) build(ctx context.Context, in CreateInput) (*Invoice, error) {
	if id.IsNil(in.CustomerID) {
		return nil, apperror.NewValidation("customer is required").WithDetail("field", "customerId")
	}
	if len(in.Lines) == 0 {
		return nil, apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}

	customer, err := s.customers.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer.DeletionMark {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "customer is marked for deletion").
			WithDetail("customerId", in.CustomerID.String())
	}
	if customer.Role != numerator.RoleCustomer {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "invoices can only be addressed to customers").
			WithDetail("customerId", in.CustomerID.String()).
			WithDetail("role", customer.Role)
	}

	treatment, _, err := s.vat.Determine(ctx, vat.Customer{Country: customer.Country, VATID: customer.VATID})
	if err != nil {
		return nil, err
	}

	issue := s.clock.Now()
	if in.IssueDate != nil {
		issue = *in.IssueDate
	}

	inv := NewInvoice(in.CustomerID, issue, in.Currency)
	inv.VATTreatment = treatment
	inv.Notes = strings.TrimSpace(in.Notes)
	if in.DueDate != nil {
		inv.DueDate = truncateDay(*in.DueDate)
	}

	for i, li := range in.Lines {
		it, err := s.items.GetByID(ctx, li.ItemID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, apperror.NewValidation("item not found").
					WithDetail("field", "lines").
					WithDetail("lineNo", i+1)
			}
			return nil, err
		}
		if it.DeletionMark {
			return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "item is marked for deletion").
				WithDetail("lineNo", i+1).
				WithDetail("itemNumber", it.ItemNumber)
		}

		price := it.UnitPrice
		if li.UnitPrice != nil {
			price = *li.UnitPrice
		} else if inv.Currency == "" {
			inv.Currency = it.Currency
		} else if it.Currency != inv.Currency {
			return nil, apperror.NewValidation("item currency differs from invoice currency").
				WithDetail("lineNo", i+1).
				WithDetail("itemCurrency", it.Currency)
		}

		description := li.Description
		if description == "" {
			description = it.Name
		}
		inv.AddLine(it.ID, description, li.Quantity, price, s.vat.RateFor(treatment, it.VATCategory))
	}

	return inv, nil
}

// GetByID retrieves an invoice with lines.
func (s *Service) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.repo.GetByID(ctx, invoiceID)
}

// GetByNumber retrieves an invoice with lines by number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	return s.repo.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
}

// List retrieves invoice headers.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return domain.ListResult[*Invoice]{}, apperror.NewValidation("invalid status filter").
			WithDetail("status", filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// Issue moves a draft invoice to issued.
func (s *Service) Issue(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.changeStatus(ctx, invoiceID, StatusIssued, EventIssued)
}

// MarkPaid moves an issued invoice to paid.
func (s *Service) MarkPaid(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.changeStatus(ctx, invoiceID, StatusPaid, EventPaid)
}

// Cancel cancels a draft or issued invoice. The number stays used.
func (s *Service) Cancel(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	return s.changeStatus(ctx, invoiceID, StatusCancelled, EventCancelled)
}

func (s *Service) changeStatus(ctx context.Context, invoiceID id.ID, target Status, eventType string) (*Invoice, error) {
	var inv *Invoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		from := inv.Status
		if err := inv.transition(target, s.clock.Now()); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, inv); err != nil {
			return fmt.Errorf("update invoice status: %w", err)
		}

		if err := s.auditor.Record(ctx, entityName, inv.ID, domain.AuditActionStatus, map[string]any{
			"invoiceNumber": inv.InvoiceNumber,
			"from":          from,
			"to":            target,
		}); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, s.event(eventType, inv))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "invoice status changed", "number", inv.InvoiceNumber, "status", inv.Status)
	return inv, nil
}

func (s *Service) event(eventType string, inv *Invoice) domain.Event {
	return domain.Event{
		AggregateType: entityName,
		AggregateID:   inv.ID,
		EventType:     eventType,
		Payload: map[string]any{
			"invoiceNumber": inv.InvoiceNumber,
			"customerId":    inv.CustomerID,
			"status":        inv.Status,
			"grossTotal":    inv.GrossTotal.StringFixed(types.MoneyScale),
			"currency":      inv.Currency,
		},
	}
}
