// Package indexer archives committed engine events in a SQL database so
// clients can page through auction history after the in-memory window is
// gone.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vaultauction/core/events"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultLimit = 100
	maxLimit     = 1000
)

// EventRecord is the persisted form of one committed event.
type EventRecord struct {
	Sequence   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type       string `gorm:"size:64;index"`
	Auction    string `gorm:"size:66;index"`
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName pins the table regardless of gorm naming strategy.
func (EventRecord) TableName() string { return "auction_events" }

// Entry is the decoded view returned to readers.
type Entry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	Type    string
	Auction string
	After   uint64
	Limit   int
}

// Archive is an events.Emitter backed by gorm.
type Archive struct {
	db     *gorm.DB
	logger *slog.Logger

	mu   sync.Mutex
	next uint64
}

var _ events.Emitter = (*Archive)(nil)

// Open connects to driver/dsn and migrates the schema.
func Open(driver, dsn string, log *slog.Logger) (*Archive, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db, log)
}

// New wraps an existing connection.
func New(db *gorm.DB, log *slog.Logger) (*Archive, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: nil database")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	var last EventRecord
	res := db.Order("sequence desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("indexer: resume sequence: %w", res.Error)
	}
	a := &Archive{db: db, logger: log, next: 1}
	if res.RowsAffected > 0 {
		a.next = last.Sequence + 1
	}
	return a, nil
}

// Emit persists evt. Failures are logged; the engine has already committed.
func (a *Archive) Emit(evt events.Event) {
	if a == nil || evt == nil {
		return
	}
	record := EventRecord{Type: evt.EventType(), CreatedAt: time.Now().UTC()}
	if payload, ok := evt.(events.Payload); ok {
		if body := payload.Event(); body != nil {
			record.Auction = body.Attributes["auction"]
			raw, err := json.Marshal(body.Attributes)
			if err != nil {
				a.logger.Error("indexer: encode event", slog.String("type", record.Type), slog.String("error", err.Error()))
				return
			}
			record.Attributes = string(raw)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	record.Sequence = a.next
	if err := a.db.Create(&record).Error; err != nil {
		a.logger.Error("indexer: persist event",
			slog.String("type", record.Type),
			slog.Uint64("sequence", record.Sequence),
			slog.String("error", err.Error()))
		return
	}
	a.next++
}

// Query returns archived events in sequence order.
func (a *Archive) Query(ctx context.Context, f Filter) ([]Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := a.db.WithContext(ctx).Model(&EventRecord{}).Where("sequence > ?", f.After)
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Auction != "" {
		q = q.Where("auction = ?", strings.ToLower(f.Auction))
	}
	var rows []EventRecord
	if err := q.Order("sequence asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("indexer: query: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry := Entry{Sequence: row.Sequence, Type: row.Type, CreatedAt: row.CreatedAt}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &entry.Attributes); err != nil {
				return nil, fmt.Errorf("indexer: decode sequence %d: %w", row.Sequence, err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
