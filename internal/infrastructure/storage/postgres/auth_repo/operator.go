// Package auth_repo provides the PostgreSQL operator repository.
package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/auth"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const operatorsTable = "cat_operators"

// OperatorRepo implements auth.Repository.
type OperatorRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewOperatorRepo creates a new operator repository.
func NewOperatorRepo(txManager *postgres.TxManager) *OperatorRepo {
	return &OperatorRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new operator.
func (r *OperatorRepo) Create(ctx context.Context, op *auth.Operator) error {
	q := r.builder.
		Insert(operatorsTable).
		SetMap(postgres.StructToMap(op))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate("operator", "code", op.Code)
		}
		return fmt.Errorf("insert operator: %w", err)
	}

	return nil
}

// Update modifies an operator with optimistic locking. Login bookkeeping
// (failed attempts, lockout) goes through here as well.
func (r *OperatorRepo) Update(ctx context.Context, op *auth.Operator) error {
	data := postgres.StructToMap(op)
	delete(data, "id")
	delete(data, "version")
	delete(data, "created_at")

	q := r.builder.
		Update(operatorsTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": op.ID}).
		Where(squirrel.Eq{"version": op.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update operator: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("operator", op.ID.String())
	}

	return nil
}

// GetByID retrieves an operator by ID.
func (r *OperatorRepo) GetByID(ctx context.Context, operatorID id.ID) (*auth.Operator, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": operatorID})
	return r.getOne(ctx, q, operatorID.String())
}

// GetByCode retrieves an operator by login code.
func (r *OperatorRepo) GetByCode(ctx context.Context, code string) (*auth.Operator, error) {
	q := r.baseSelect().Where(squirrel.Eq{"code": code})
	return r.getOne(ctx, q, code)
}

// List returns operators ordered by code.
func (r *OperatorRepo) List(ctx context.Context, activeOnly bool) ([]auth.Operator, error) {
	q := r.baseSelect().OrderBy("code ASC")
	if activeOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var operators []auth.Operator
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &operators, sql, args...); err != nil {
		return nil, fmt.Errorf("select operators: %w", err)
	}

	return operators, nil
}

func (r *OperatorRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.
		Select(postgres.ExtractDBColumns[auth.Operator]()...).
		From(operatorsTable)
}

func (r *OperatorRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*auth.Operator, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var op auth.Operator
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &op, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("operator", key)
		}
		return nil, fmt.Errorf("get operator: %w", err)
	}

	return &op, nil
}

// Ensure interface compliance.
var _ auth.Repository = (*OperatorRepo)(nil)
