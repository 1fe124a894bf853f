// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "tillpoint/internal/core/context"
	"tillpoint/internal/core/id"
	"tillpoint/internal/domain/sale"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionSaleCommitted  AuditAction = "sale_committed"
	AuditActionBatchCompleted AuditAction = "batch_completed"
	AuditActionAdjustment     AuditAction = "adjustment"
)

// CompressionAlgo specifies the compression algorithm used for snapshots.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is a single audit log row: a snapshot of the document at
// the moment the operation completed.
type AuditEntry struct {
	ID              id.ID           `db:"id"`
	EntityType      string          `db:"entity_type"`
	EntityID        id.ID           `db:"entity_id"`
	Action          AuditAction     `db:"action"`
	Operator        string          `db:"operator"`
	TerminalID      string          `db:"terminal_id"`
	Snapshot        json.RawMessage `db:"snapshot"`
	SnapshotZstd    []byte          `db:"snapshot_zstd"`
	CompressionAlgo CompressionAlgo `db:"compression_algo"`
	CreatedAt       time.Time       `db:"created_at"`
}

// AuditService stores document snapshots in sys_audit. Snapshots above
// the threshold are zstd-compressed.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
	}, nil
}

// LogSale records a snapshot of a committed sale. Implements the
// checkout orchestrator's audit hook; called after commit, so a failure
// here never rolls back the sale.
func (s *AuditService) LogSale(ctx context.Context, committed *sale.Sale) error {
	snapshot, err := json.Marshal(committed)
	if err != nil {
		return fmt.Errorf("marshal sale snapshot: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: "sale",
		EntityID:   committed.ID,
		Action:     AuditActionSaleCommitted,
		TerminalID: committed.TerminalID,
		Snapshot:   snapshot,
	})
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.Operator == "" {
		if op := appctx.GetOperator(ctx); op != nil {
			entry.Operator = op.Name
		}
	}

	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Snapshot) > s.compressThreshold {
		entry.SnapshotZstd = s.encoder.EncodeAll(entry.Snapshot, nil)
		entry.Snapshot = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, operator, terminal_id,
			snapshot, snapshot_zstd, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.Operator, entry.TerminalID,
		entry.Snapshot, entry.SnapshotZstd, entry.CompressionAlgo,
		entry.CreatedAt,
	)

	return err
}

// GetEntityHistory retrieves audit history for an entity, newest first.
// Compressed snapshots are decompressed before return.
func (s *AuditService) GetEntityHistory(
	ctx context.Context,
	entityType string,
	entityID id.ID,
	limit int,
) ([]AuditEntry, error) {
	sql := `
		SELECT id, entity_type, entity_id, action, operator, terminal_id,
			   snapshot, snapshot_zstd, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.Operator, &e.TerminalID,
			&e.Snapshot, &e.SnapshotZstd, &e.CompressionAlgo,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.SnapshotZstd) > 0 {
			decompressed, err := s.decoder.DecodeAll(e.SnapshotZstd, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress snapshot: %w", err)
			}
			e.Snapshot = decompressed
			e.SnapshotZstd = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Ensure interface compliance.
var _ sale.AuditLogger = (*AuditService)(nil)
