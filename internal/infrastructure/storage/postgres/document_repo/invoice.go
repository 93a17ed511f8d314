package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/id"
	"invoicer/internal/domain"
	"invoicer/internal/domain/documents/invoice"
	"invoicer/internal/infrastructure/storage/postgres"
)

const (
	invoicesTable     = "invoices"
	invoiceLinesTable = "invoice_lines"
)

// InvoiceRepo implements invoice.Repository.
type InvoiceRepo struct {
	*BaseDocumentRepo[*invoice.Invoice]
	lineCols []string
}

var _ invoice.Repository = (*InvoiceRepo)(nil)

// NewInvoiceRepo creates a new invoice repository.
func NewInvoiceRepo(txm *postgres.TxManager) *InvoiceRepo {
	return &InvoiceRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txm,
			invoicesTable,
			"invoice",
			"invoice_number",
			postgres.ExtractDBColumns[invoice.Invoice](),
			func() *invoice.Invoice { return &invoice.Invoice{} },
		),
		lineCols: postgres.ExtractDBColumns[invoice.Line](),
	}
}

// Create inserts the header and all lines.
func (r *InvoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	if err := r.BaseDocumentRepo.Create(ctx, inv); err != nil {
		return err
	}
	return r.insertLines(ctx, inv.ID, inv.Lines)
}

func (r *InvoiceRepo) linesInsertQuery(invoiceID id.ID, lines []invoice.Line) squirrel.InsertBuilder {
	q := r.Builder().
		Insert(invoiceLinesTable).
		Columns(r.lineCols...)

	for _, line := range lines {
		line.InvoiceID = invoiceID
		data := postgres.StructToMap(line)
		values := make([]any, len(r.lineCols))
		for i, col := range r.lineCols {
			values[i] = data[col]
		}
		q = q.Values(values...)
	}
	return q
}

func (r *InvoiceRepo) insertLines(ctx context.Context, invoiceID id.ID, lines []invoice.Line) error {
	if len(lines) == 0 {
		return nil
	}

	sql, args, err := r.linesInsertQuery(invoiceID, lines).ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.ClassifyError(fmt.Errorf("insert invoice lines: %w", err))
	}
	return nil
}

// getLines retrieves lines of an invoice.
func (r *InvoiceRepo) getLines(ctx context.Context, invoiceID id.ID) ([]invoice.Line, error) {
	sql, args, err := r.Builder().
		Select(r.lineCols...).
		From(invoiceLinesTable).
		Where(squirrel.Eq{"invoice_id": invoiceID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lines := []invoice.Line{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, postgres.ClassifyError(fmt.Errorf("get invoice lines: %w", err))
	}
	return lines, nil
}

func (r *InvoiceRepo) withLines(ctx context.Context, inv *invoice.Invoice, err error) (*invoice.Invoice, error) {
	if err != nil {
		return nil, err
	}
	lines, err := r.getLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

// GetByID retrieves an invoice with lines.
func (r *InvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	inv, err := r.GetHeader(ctx, invoiceID)
	return r.withLines(ctx, inv, err)
}

// GetByNumber retrieves an invoice with lines by number.
func (r *InvoiceRepo) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	inv, err := r.GetHeaderByNumber(ctx, number)
	return r.withLines(ctx, inv, err)
}

// GetForUpdate locks the header row and loads lines.
func (r *InvoiceRepo) GetForUpdate(ctx context.Context, invoiceID id.ID) (*invoice.Invoice, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, apperror.NewInternal(fmt.Errorf("get invoice for update outside transaction"))
	}
	inv, err := r.GetHeaderForUpdate(ctx, invoiceID)
	return r.withLines(ctx, inv, err)
}

func (r *InvoiceRepo) statusUpdateQuery(inv *invoice.Invoice) squirrel.UpdateBuilder {
	return r.Builder().
		Update(invoicesTable).
		Set("status", inv.Status).
		Set("issued_at", inv.IssuedAt).
		Set("paid_at", inv.PaidAt).
		Set("cancelled_at", inv.CancelledAt).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": inv.ID}).
		Where(squirrel.Eq{"version": inv.Version})
}

// UpdateStatus writes status fields with optimistic locking.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, inv *invoice.Invoice) error {
	sql, args, err := r.statusUpdateQuery(inv).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("update invoice status: %w", err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("invoice", inv.ID.String())
	}

	inv.Touch()
	return nil
}

func (r *InvoiceRepo) listQuery(filter invoice.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"issue_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"issue_date": *filter.DateTo})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"invoice_number": pattern},
			squirrel.ILike{"notes": pattern},
		})
	}
	return q
}

// List retrieves invoice headers with filtering.
func (r *InvoiceRepo) List(ctx context.Context, filter invoice.ListFilter) (domain.ListResult[*invoice.Invoice], error) {
	result := domain.ListResult[*invoice.Invoice]{
		Items:  []*invoice.Invoice{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.listQuery(filter)

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.ClassifyError(fmt.Errorf("count invoices: %w", err))
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, postgres.ClassifyError(fmt.Errorf("list invoices: %w", err))
	}
	return result, nil
}
