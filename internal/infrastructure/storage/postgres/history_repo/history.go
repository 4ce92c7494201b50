// Package history_repo provides the PostgreSQL request history store.
package history_repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"bfoproxy/internal/core/apperror"
	"bfoproxy/internal/domain/history"
	"bfoproxy/internal/infrastructure/storage/postgres"
)

const historyTable = "request_history"

// CompressionAlgo specifies how a stored response body is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the response size above which bodies are compressed.
const DefaultCompressThreshold = 10 * 1024

type historyRow struct {
	ID              int64           `db:"id"`
	TaxID           string          `db:"inn"`
	Request         []byte          `db:"request"`
	Params          []byte          `db:"params"`
	StatusCode      int             `db:"status_code"`
	Response        []byte          `db:"response"`
	ResponseZstd    []byte          `db:"response_zstd"`
	CompressionAlgo CompressionAlgo `db:"compression_algo"`
	StartedAt       time.Time       `db:"started_at"`
	FinishedAt      time.Time       `db:"finished_at"`
}

var historyColumns = postgres.ExtractDBColumns[historyRow]()

// HistoryRepo implements history.Repository.
// Response bodies above the threshold are stored zstd-compressed.
type HistoryRepo struct {
	txm               *postgres.TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ history.Repository = (*HistoryRepo)(nil)

// NewHistoryRepo creates a new history repository.
func NewHistoryRepo(txm *postgres.TxManager, compressThreshold int) (*HistoryRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if compressThreshold <= 0 {
		compressThreshold = DefaultCompressThreshold
	}

	return &HistoryRepo{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: compressThreshold,
	}, nil
}

// Close releases the codec resources.
func (r *HistoryRepo) Close() {
	_ = r.encoder.Close()
	r.decoder.Close()
}

// toRow encodes an entry for storage.
func (r *HistoryRepo) toRow(e *history.Entry) (*historyRow, error) {
	request, err := json.Marshal(e.Request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	params := e.Params
	if params == nil {
		params = map[string][]string{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	row := &historyRow{
		TaxID:           e.TaxID,
		Request:         request,
		Params:          paramsJSON,
		StatusCode:      e.StatusCode,
		CompressionAlgo: CompressionNone,
		StartedAt:       e.StartedAt,
		FinishedAt:      e.FinishedAt,
	}
	if len(e.Response) > r.compressThreshold {
		row.ResponseZstd = r.encoder.EncodeAll(e.Response, nil)
		row.CompressionAlgo = CompressionZstd
	} else {
		row.Response = e.Response
	}
	return row, nil
}

// toEntry decodes a stored row.
func (r *HistoryRepo) toEntry(row *historyRow) (*history.Entry, error) {
	e := &history.Entry{
		ID:         row.ID,
		TaxID:      row.TaxID,
		StatusCode: row.StatusCode,
		Response:   row.Response,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
	}
	if len(row.Request) > 0 {
		if err := json.Unmarshal(row.Request, &e.Request); err != nil {
			return nil, fmt.Errorf("unmarshal request: %w", err)
		}
	}
	if len(row.Params) > 0 {
		if err := json.Unmarshal(row.Params, &e.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	if row.CompressionAlgo == CompressionZstd {
		body, err := r.decoder.DecodeAll(row.ResponseZstd, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress response: %w", err)
		}
		e.Response = body
	}
	return e, nil
}

func insertQuery(row *historyRow) squirrel.InsertBuilder {
	return postgres.Builder().
		Insert(historyTable).
		Columns("inn", "request", "params", "status_code", "response", "response_zstd", "compression_algo", "started_at", "finished_at").
		Values(row.TaxID, row.Request, row.Params, row.StatusCode, nullable(row.Response), nullable(row.ResponseZstd),
			row.CompressionAlgo, row.StartedAt, row.FinishedAt).
		Suffix("RETURNING id")
}

func listQuery(taxID string, limit int) squirrel.SelectBuilder {
	return postgres.Builder().
		Select(historyColumns...).
		From(historyTable).
		Where(squirrel.Eq{"inn": taxID}).
		OrderBy("started_at DESC", "id DESC").
		Limit(uint64(limit))
}

func deleteBeforeQuery(cutoff time.Time) squirrel.DeleteBuilder {
	return postgres.Builder().
		Delete(historyTable).
		Where(squirrel.Lt{"finished_at": cutoff})
}

// nullable maps empty bodies to SQL NULL.
func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// Create implements history.Repository.
func (r *HistoryRepo) Create(ctx context.Context, entry *history.Entry) error {
	row, err := r.toRow(entry)
	if err != nil {
		return err
	}

	sql, args, err := insertQuery(row).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&entry.ID); err != nil {
		return apperror.NewDatabase(fmt.Errorf("insert history: %w", err))
	}
	return nil
}

// ListByTaxID implements history.Repository.
func (r *HistoryRepo) ListByTaxID(ctx context.Context, taxID string, limit int) ([]*history.Entry, error) {
	sql, args, err := listQuery(taxID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []*historyRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, apperror.NewDatabase(fmt.Errorf("select history: %w", err))
	}

	entries := make([]*history.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := r.toEntry(row)
		if err != nil {
			return nil, fmt.Errorf("history entry %d: %w", row.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// DeleteBefore implements history.Repository.
func (r *HistoryRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	sql, args, err := deleteBeforeQuery(cutoff).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, apperror.NewDatabase(fmt.Errorf("delete history: %w", err))
	}
	return tag.RowsAffected(), nil
}
