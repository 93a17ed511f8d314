package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/id"
	"invoicer/internal/core/numerator"
	"invoicer/internal/core/tx"
	"invoicer/internal/core/types"
	"invoicer/internal/domain"
	"invoicer/internal/domain/catalogs/item"
	"invoicer/internal/domain/catalogs/user"
	"invoicer/internal/domain/numbering"
	"invoicer/internal/domain/vat"
)

var may2025 = time.Date(2025, time.May, 20, 9, 30, 0, 0, time.UTC)

type memRepo struct {
	invoices  map[id.ID]*Invoice
	createErr error
}

func (r *memRepo) Create(ctx context.Context, inv *Invoice) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.invoices[inv.ID] = inv
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	if inv, ok := r.invoices[invoiceID]; ok {
		return inv, nil
	}
	return nil, apperror.NewNotFound("invoice", invoiceID)
}

func (r *memRepo) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == number {
			return inv, nil
		}
	}
	return nil, apperror.NewNotFound("invoice", number)
}

func (r *memRepo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*Invoice, error) {
	if !tx.InFakeTx(ctx) {
		return nil, apperror.NewInternal(nil).WithDetail("reason", "lock outside transaction")
	}
	return r.GetByID(ctx, invoiceID)
}

func (r *memRepo) UpdateStatus(ctx context.Context, inv *Invoice) error {
	inv.Touch()
	return nil
}

func (r *memRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Invoice], error) {
	var res domain.ListResult[*Invoice]
	for _, inv := range r.invoices {
		if filter.Status == "" || inv.Status == filter.Status {
			res.Items = append(res.Items, inv)
		}
	}
	res.TotalCount = int64(len(res.Items))
	return res, nil
}

type staticCustomers map[id.ID]*user.User

func (c staticCustomers) GetByID(ctx context.Context, userID id.ID) (*user.User, error) {
	if u, ok := c[userID]; ok {
		return u, nil
	}
	return nil, apperror.NewNotFound("user", userID)
}

type staticItems map[id.ID]*item.Item

func (c staticItems) GetByID(ctx context.Context, itemID id.ID) (*item.Item, error) {
	if it, ok := c[itemID]; ok {
		return it, nil
	}
	return nil, apperror.NewNotFound("item", itemID)
}

type recordingPublisher struct {
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e domain.Event) error {
	if !tx.InFakeTx(ctx) {
		return apperror.NewInternal(nil).WithDetail("reason", "publish outside transaction")
	}
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	svc       *Service
	repo      *memRepo
	txm       *tx.FakeManager
	publisher *recordingPublisher

	domestic *user.User
	business *user.User
	admin    *user.User

	consulting *item.Item
	book       *item.Item
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	txm := &tx.FakeManager{}
	clock := numerator.FixedClock(may2025)
	numbers := numbering.NewService(&numerator.MockGenerator{}, txm, clock, numbering.Config{})
	vatSvc, err := vat.NewService(vat.Config{HomeCountry: "DE"})
	require.NoError(t, err)

	f := &fixture{
		repo:      &memRepo{invoices: make(map[id.ID]*Invoice)},
		txm:       txm,
		publisher: &recordingPublisher{},

		domestic: user.NewUser("anna@example.de", "Anna", numerator.RoleCustomer, "DE"),
		business: user.NewUser("ap@acme.fr", "ACME SARL", numerator.RoleCustomer, "FR"),
		admin:    user.NewUser("root@example.de", "Root", numerator.RoleAdmin, "DE"),

		consulting: item.NewItem("Consulting", types.MustMoney("120.00"), "EUR"),
		book:       item.NewItem("Handbook", types.MustMoney("29.90"), "EUR"),
	}
	f.business.VATID = "FR12345678901"
	f.book.VATCategory = vat.CategoryReduced

	f.svc = NewService(Deps{
		Repo:      f.repo,
		TxManager: txm,
		Numbers:   numbers,
		Customers: staticCustomers{f.domestic.ID: f.domestic, f.business.ID: f.business, f.admin.ID: f.admin},
		Items:     staticItems{f.consulting.ID: f.consulting, f.book.ID: f.book},
		VAT:       vatSvc,
		Publisher: f.publisher,
		Clock:     clock,
	})
	return f
}

func (f *fixture) input(customer *user.User) CreateInput {
	return CreateInput{
		CustomerID: customer.ID,
		Lines: []LineInput{
			{ItemID: f.consulting.ID, Quantity: decimal.NewFromInt(3)},
			{ItemID: f.book.ID, Quantity: decimal.NewFromInt(2)},
		},
	}
}

func TestCreate_DomesticInvoice(t *testing.T) {
	f := newFixture(t)

	inv, err := f.svc.Create(context.Background(), f.input(f.domestic))
	require.NoError(t, err)

	assert.Equal(t, "INV2505000001", inv.InvoiceNumber)
	assert.Equal(t, StatusDraft, inv.Status)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, vat.TreatmentStandard, inv.VATTreatment)
	assert.Equal(t, time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC), inv.IssueDate)
	assert.Equal(t, time.Date(2025, time.June, 3, 0, 0, 0, 0, time.UTC), inv.DueDate)

	require.Len(t, inv.Lines, 2)
	assert.Equal(t, "Consulting", inv.Lines[0].Description)
	assert.True(t, inv.Lines[0].VATRate.Equal(decimal.NewFromInt(19)))
	assert.True(t, inv.Lines[1].VATRate.Equal(decimal.NewFromInt(7)))

	// 360.00 + 59.80 net; 68.40 + 4.19 (4.186) VAT
	assert.True(t, inv.NetTotal.Equal(types.MustMoney("419.80")), inv.NetTotal.String())
	assert.True(t, inv.VATTotal.Equal(types.MustMoney("72.59")), inv.VATTotal.String())
	assert.True(t, inv.GrossTotal.Equal(types.MustMoney("492.39")), inv.GrossTotal.String())

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, EventCreated, f.publisher.events[0].EventType)
	assert.Equal(t, 1, f.txm.Committed)
}

func TestCreate_SequentialNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, want := range []string{"INV2505000001", "INV2505000002", "INV2505000003"} {
		inv, err := f.svc.Create(ctx, f.input(f.domestic))
		require.NoError(t, err)
		assert.Equal(t, want, inv.InvoiceNumber)
		assert.Regexp(t, `^(INV|ITM)\d{2}\d{2}\d{6}$`, inv.InvoiceNumber)
	}
}

func TestCreate_ReverseCharge(t *testing.T) {
	f := newFixture(t)

	inv, err := f.svc.Create(context.Background(), f.input(f.business))
	require.NoError(t, err)
	assert.Equal(t, vat.TreatmentReverseCharge, inv.VATTreatment)
	assert.True(t, inv.VATTotal.IsZero())
	assert.True(t, inv.GrossTotal.Equal(inv.NetTotal))
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.input(f.admin))
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	in := f.input(f.domestic)
	in.Lines = append(in.Lines, LineInput{ItemID: id.New(), Quantity: decimal.NewFromInt(1)})
	_, err = f.svc.Create(ctx, in)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	in = f.input(f.domestic)
	in.Lines[0].Quantity = decimal.Zero
	_, err = f.svc.Create(ctx, in)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	in = f.input(f.domestic)
	in.Currency = "USD"
	_, err = f.svc.Create(ctx, in)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	in = f.input(f.domestic)
	due := may2025.AddDate(0, 0, -1)
	in.DueDate = &due
	_, err = f.svc.Create(ctx, in)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	assert.Equal(t, 0, f.txm.Begun)
}

func TestCreate_FailedInsertReleasesNothing(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = apperror.NewDuplicateNumber("invoices_invoice_number_key", nil)

	inv, err := f.svc.Create(context.Background(), f.input(f.domestic))
	require.Error(t, err)
	assert.Nil(t, inv)
	assert.True(t, apperror.IsRetryable(err))
	assert.Equal(t, 1, f.txm.RolledBack)
	assert.Empty(t, f.publisher.events)
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, f.input(f.domestic))
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, inv.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	inv, err = f.svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, inv.Status)
	require.NotNil(t, inv.IssuedAt)

	inv, err = f.svc.MarkPaid(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)

	_, err = f.svc.Cancel(ctx, inv.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidTransition))

	got := make([]string, 0, len(f.publisher.events))
	for _, e := range f.publisher.events {
		got = append(got, e.EventType)
	}
	assert.Equal(t, []string{EventCreated, EventIssued, EventPaid}, got)
	assert.Equal(t, "INV2505000001", inv.InvoiceNumber)
}

func TestCancelDraftKeepsNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.input(f.domestic))
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, first.ID)
	require.NoError(t, err)

	second, err := f.svc.Create(ctx, f.input(f.domestic))
	require.NoError(t, err)
	assert.Equal(t, "INV2505000002", second.InvoiceNumber)

	found, err := f.svc.GetByNumber(ctx, " inv2505000001 ")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, found.Status)
}

func TestStatusCanTransition(t *testing.T) {
	assert.True(t, StatusDraft.CanTransition(StatusIssued))
	assert.True(t, StatusDraft.CanTransition(StatusCancelled))
	assert.False(t, StatusDraft.CanTransition(StatusPaid))
	assert.True(t, StatusIssued.CanTransition(StatusPaid))
	assert.False(t, StatusPaid.CanTransition(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransition(StatusIssued))
}
