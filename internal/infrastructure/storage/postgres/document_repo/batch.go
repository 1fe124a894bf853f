package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"tillpoint/internal/domain/manufacturing"
	"tillpoint/internal/infrastructure/storage/postgres"
)

const batchesTable = "doc_batches"

// BatchRepo implements manufacturing.BatchRepository.
type BatchRepo struct {
	*BaseDocumentRepo[*manufacturing.Batch]
}

// NewBatchRepo creates a new manufacturing batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			batchesTable,
			postgres.ExtractDBColumns[manufacturing.Batch](),
			func() *manufacturing.Batch { return &manufacturing.Batch{} },
		),
	}
}

// List returns batches matching the filter, newest first.
func (r *BatchRepo) List(ctx context.Context, filter manufacturing.BatchFilter) ([]manufacturing.Batch, error) {
	q := r.Builder().
		Select(postgres.ExtractDBColumns[manufacturing.Batch]()...).
		From(batchesTable)

	if filter.ProcessID != nil {
		q = q.Where(squirrel.Eq{"process_id": *filter.ProcessID})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.To})
	}

	q = q.OrderBy("created_at DESC", "number DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	ptrs, err := r.FindMany(ctx, q)
	if err != nil {
		return nil, err
	}

	batches := make([]manufacturing.Batch, 0, len(ptrs))
	for _, b := range ptrs {
		batches = append(batches, *b)
	}
	return batches, nil
}

// Ensure interface compliance.
var _ manufacturing.BatchRepository = (*BatchRepo)(nil)
