package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/BaSui01/agentprocessor/internal/database"
)

// processEventRow is the GORM model backing the process_events table created
// by internal/migration's postgres/mysql/sqlite migrations.
type processEventRow struct {
	ID         uint64 `gorm:"primaryKey;column:id"`
	ProcessID  string `gorm:"column:process_id;index"`
	Agent      string `gorm:"column:agent"`
	Action     string `gorm:"column:action"`
	State      string `gorm:"column:state"`
	Data       string `gorm:"column:data"`
	Seq        int64  `gorm:"column:seq"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
}

func (processEventRow) TableName() string { return "process_events" }

// SQLStore is a relational Event Store backend, storing each document as a
// JSON-encoded column alongside the columns the Status Reducer filters on
// (process_id, agent, action; only process_id is indexed). Demonstrates the pluggable-backend
// requirement across postgres, mysql, and sqlite dialects via GORM.
type SQLStore struct {
	db   *gorm.DB
	pool *database.PoolManager
}

// NewSQLStore wraps an already-opened *gorm.DB directly. Used by tests that
// drive a mocked driver (go-sqlmock) where connection pooling and health
// checks have no meaning; production wiring goes through NewSQLStoreWithPool.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// NewSQLStoreWithPool wraps a database.PoolManager, reusing its connection
// limits, background health checks, and transaction helpers for the
// process_events table's lifecycle instead of opening *gorm.DB directly.
func NewSQLStoreWithPool(pool *database.PoolManager) *SQLStore {
	return &SQLStore{db: pool.DB(), pool: pool}
}

// Insert appends doc as a new process_events row. The "collection" parameter
// is accepted for interface symmetry with the document-store backends but
// SQLStore only ever serves the process_events table.
func (s *SQLStore) Insert(ctx context.Context, collection string, doc Document) error {
	row, err := toRow(doc)
	if err != nil {
		return fmt.Errorf("sql store encode document: %w", err)
	}

	if s.pool != nil {
		if err := s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
			return tx.Create(row).Error
		}); err != nil {
			return fmt.Errorf("sql store insert: %w", err)
		}
		return nil
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("sql store insert: %w", err)
	}
	return nil
}

// Find streams rows whose process_id/agent/action columns match filter,
// decoding the JSON data column back into free-form fields merged onto those
// columns.
func (s *SQLStore) Find(ctx context.Context, collection string, filter Document, fn func(Document) error) error {
	query := s.db.WithContext(ctx).Model(&processEventRow{})
	if v, ok := filter["process_id"]; ok {
		query = query.Where("process_id = ?", v)
	}
	if v, ok := filter["agent"]; ok {
		query = query.Where("agent = ?", v)
	}
	if v, ok := filter["action"]; ok {
		query = query.Where("action = ?", v)
	}

	rows := make([]processEventRow, 0)
	if err := query.Find(&rows).Error; err != nil {
		return fmt.Errorf("sql store find: %w", err)
	}

	for _, row := range rows {
		doc, err := fromRow(row)
		if err != nil {
			return fmt.Errorf("sql store decode document: %w", err)
		}
		if !matches(doc, filter) {
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying *sql.DB connection pool. When the store was
// built from a database.PoolManager, closing goes through the pool so its
// health-check loop stops cleanly.
func (s *SQLStore) Close(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(doc Document) (*processEventRow, error) {
	row := &processEventRow{}

	if v, ok := doc["process_id"].(string); ok {
		row.ProcessID = v
	}
	if v, ok := doc["agent"].(string); ok {
		row.Agent = v
	}
	if v, ok := doc["action"].(string); ok {
		row.Action = v
	}
	if v, ok := doc["state"].(string); ok {
		row.State = v
	}
	if v, ok := doc["seq"].(int64); ok {
		row.Seq = v
	}
	if v, ok := doc["occurred_at"].(time.Time); ok {
		row.OccurredAt = v
	} else {
		row.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	row.Data = string(payload)

	return row, nil
}

func fromRow(row processEventRow) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(row.Data), &doc); err != nil {
		return nil, err
	}
	doc["process_id"] = row.ProcessID
	doc["agent"] = row.Agent
	doc["action"] = row.Action
	doc["state"] = row.State
	doc["seq"] = row.Seq
	doc["occurred_at"] = row.OccurredAt
	return doc, nil
}
