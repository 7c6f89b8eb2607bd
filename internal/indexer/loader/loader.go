// Package loader bootstraps the exact-match index from the PostgreSQL items
// table before the item stream takes over.
//
// Expected schema:
//
//	CREATE TABLE items (
//	    id         TEXT PRIMARY KEY,
//	    kind       TEXT NOT NULL,          -- 'entity' | 'document'
//	    payload    JSONB NOT NULL,
//	    deleted_at TIMESTAMPTZ
//	);
package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/logger"
)

const defaultBatchSize = 500

// BulkWriter receives decoded items. index.Guarded satisfies it.
type BulkWriter interface {
	AddAll(items []item.Item) (int, error)
}

type Loader struct {
	db        *sql.DB
	table     string
	batchSize int
	logger    *slog.Logger
}

func New(db *sql.DB, table string) *Loader {
	return &Loader{
		db:        db,
		table:     table,
		batchSize: defaultBatchSize,
		logger:    logger.WithComponent("index-loader"),
	}
}

// Query returns the statement Load runs.
func (l *Loader) Query() string {
	return fmt.Sprintf(`SELECT id, kind, payload FROM %s WHERE deleted_at IS NULL ORDER BY id`, pq.QuoteIdentifier(l.table))
}

// Load streams every live row into w in batches. Rows that cannot be
// decoded are logged and skipped; it returns the number of items added.
func (l *Loader) Load(ctx context.Context, w BulkWriter) (int, error) {
	start := time.Now()
	rows, err := l.db.QueryContext(ctx, l.Query())
	if err != nil {
		return 0, fmt.Errorf("querying %s: %w", l.table, err)
	}
	defer rows.Close()

	var loaded, skipped int
	batch := make([]item.Item, 0, l.batchSize)
	flush := func() error {
		n, err := w.AddAll(batch)
		loaded += n
		batch = batch[:0]
		return err
	}

	for rows.Next() {
		var (
			id, kind string
			payload  []byte
		)
		if err := rows.Scan(&id, &kind, &payload); err != nil {
			return loaded, fmt.Errorf("scanning %s row: %w", l.table, err)
		}
		it, err := DecodeRow(id, kind, payload)
		if err != nil {
			skipped++
			l.logger.Warn("skipping undecodable item row", "id", id, "kind", kind, "error", err)
			continue
		}
		batch = append(batch, it)
		if len(batch) == l.batchSize {
			if err := flush(); err != nil {
				return loaded, fmt.Errorf("indexing batch: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return loaded, fmt.Errorf("reading %s: %w", l.table, err)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return loaded, fmt.Errorf("indexing batch: %w", err)
		}
	}

	l.logger.Info("index bootstrap complete",
		"table", l.table,
		"loaded", loaded,
		"skipped", skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return loaded, nil
}

// DecodeRow builds an item from a table row. The id column wins over any
// identifier inside the payload.
func DecodeRow(id, kind string, payload []byte) (item.Item, error) {
	if id == "" {
		return nil, apperrors.ErrMissingIdentifier
	}
	rec := item.Record{Kind: kind}
	switch kind {
	case item.KindEntity:
		rec.Entity = &item.Entity{}
		if err := json.Unmarshal(payload, rec.Entity); err != nil {
			return nil, fmt.Errorf("decoding entity payload: %w", err)
		}
		rec.Entity.UUID = id
	case item.KindDocument:
		rec.Document = &item.Document{}
		if err := json.Unmarshal(payload, rec.Document); err != nil {
			return nil, fmt.Errorf("decoding document payload: %w", err)
		}
		rec.Document.DocID = id
	}
	return rec.Item()
}
