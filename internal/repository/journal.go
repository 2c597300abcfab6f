package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	"github.com/wekabeka1996/aurora/internal/domain/repository"
)

// ClickHouseJournal persists every terminal decision for audit and replay
// analysis. Writes are fire-and-forget from the pipeline's point of view;
// a failed insert is logged and counted, never surfaced to the caller.
type ClickHouseJournal struct {
	db    *sql.DB
	table string
}

func NewClickHouseJournal(db *sql.DB, table string) repository.Journal {
	if table == "" {
		table = "aurora_decisions"
	}
	return &ClickHouseJournal{db: db, table: table}
}

// JournalSchema returns the DDL for the decision table, applied at startup.
func JournalSchema(table string) []string {
	if table == "" {
		table = "aurora_decisions"
	}
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts DateTime64(3),
		decision_id String,
		intent_id String,
		symbol LowCardinality(String),
		account LowCardinality(String),
		mode LowCardinality(String),
		allow UInt8,
		max_qty Float64,
		reasons String,
		route LowCardinality(String),
		latency_ms Float64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(ts)
	ORDER BY (symbol, ts)
	TTL toDateTime(ts) + INTERVAL 90 DAY`, table)}
}

func (j *ClickHouseJournal) Store(ctx context.Context, d *models.Decision) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, decision_id, intent_id, symbol, account, mode, allow, max_qty, reasons, route, latency_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", j.table)
	_, err := j.db.ExecContext(ctx, q, journalArgs(d)...)
	return err
}

func (j *ClickHouseJournal) StoreBatch(ctx context.Context, decisions []*models.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	const chunkSize = 1000
	for start := 0; start < len(decisions); start += chunkSize {
		end := start + chunkSize
		if end > len(decisions) {
			end = len(decisions)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*11)
		for _, d := range decisions[start:end] {
			if d == nil || d.ID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, journalArgs(d)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, decision_id, intent_id, symbol, account, mode, allow, max_qty, reasons, route, latency_ms) VALUES %s",
			j.table, strings.Join(values, ","))
		if _, err := j.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func journalArgs(d *models.Decision) []interface{} {
	allow := uint8(0)
	if d.Allow {
		allow = 1
	}
	route := ""
	if d.Route != nil {
		route = d.Route.Route
	}
	return []interface{}{
		d.CreatedAt,
		d.ID,
		d.IntentID,
		d.Symbol,
		d.Account,
		string(d.Mode),
		allow,
		d.MaxQty,
		strings.Join(d.Reasons, ","),
		route,
		d.LatencyMs,
	}
}

func (j *ClickHouseJournal) Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf("SELECT ts, decision_id, intent_id, symbol, account, mode, allow, max_qty, reasons, route, latency_ms FROM %s WHERE symbol = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", j.table)
	rows, err := j.db.QueryContext(ctx, q, symbol, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*models.Decision
	for rows.Next() {
		var (
			d       models.Decision
			mode    string
			allow   uint8
			reasons string
			route   string
		)
		if err := rows.Scan(&d.CreatedAt, &d.ID, &d.IntentID, &d.Symbol, &d.Account, &mode, &allow, &d.MaxQty, &reasons, &route, &d.LatencyMs); err != nil {
			return nil, err
		}
		d.Mode = models.Mode(mode)
		d.Allow = allow == 1
		if reasons != "" {
			d.Reasons = strings.Split(reasons, ",")
		}
		if route != "" {
			d.Route = &models.RouteDecision{Route: route}
		}
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

func (j *ClickHouseJournal) Health(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *ClickHouseJournal) Close() error {
	return nil
}
