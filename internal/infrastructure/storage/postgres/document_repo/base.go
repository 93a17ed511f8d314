// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/id"
	"invoicer/internal/infrastructure/storage/postgres"
)

// BaseDocumentRepo provides common operations for document headers.
type BaseDocumentRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	numberCol  string
	selectCols []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a new base document repository.
func NewBaseDocumentRepo[T any](
	txm *postgres.TxManager,
	tableName, entityName, numberCol string,
	selectCols []string,
	newFn func() T,
) *BaseDocumentRepo[T] {
	return &BaseDocumentRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		numberCol:  numberCol,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseDocumentRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseDocumentRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

func (r *BaseDocumentRepo[T]) insertQuery(entity T) (squirrel.InsertBuilder, error) {
	data := postgres.StructToMap(entity)
	if len(data) == 0 {
		return squirrel.InsertBuilder{}, fmt.Errorf("no db tags found in entity")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	return r.Builder().
		Insert(r.tableName).
		SetMap(filteredData), nil
}

// Create inserts a document header.
func (r *BaseDocumentRepo[T]) Create(ctx context.Context, entity T) error {
	q, err := r.insertQuery(entity)
	if err != nil {
		return err
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.ClassifyError(fmt.Errorf("insert %s: %w", r.tableName, err))
	}
	return nil
}

// baseSelect creates a SELECT builder.
func (r *BaseDocumentRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

func (r *BaseDocumentRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	entity := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return entity, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), entity, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return entity, apperror.NewNotFound(r.entityName, key)
		}
		return entity, postgres.ClassifyError(fmt.Errorf("get %s: %w", r.tableName, err))
	}
	return entity, nil
}

// GetHeader retrieves a document header by ID.
func (r *BaseDocumentRepo[T]) GetHeader(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}), entityID.String())
}

// GetHeaderByNumber retrieves a document header by its number.
func (r *BaseDocumentRepo[T]) GetHeaderByNumber(ctx context.Context, number string) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{r.numberCol: number}), number)
}

// GetHeaderForUpdate retrieves a document header with row lock.
func (r *BaseDocumentRepo[T]) GetHeaderForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"), entityID.String())
}

func (r *BaseDocumentRepo[T]) parseOrderBy(orderBy string) (string, error) {
	if strings.TrimSpace(orderBy) == "" {
		return r.numberCol + " DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	for _, col := range r.selectCols {
		if col == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
}
