// Package mysql stores events in MySQL: one row per event in the events
// table and extension fields in the eventmeta side table.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/cyp0633/eventcal/event"
	"github.com/cyp0633/eventcal/storage"
)

const eventColumns = "id, object_id, object_type, object_subtype, title, content, status, " +
	"`start`, start_tz, `end`, end_tz, all_day, " +
	"recurrence, recurrence_interval, recurrence_count, recurrence_end, recurrence_end_tz"

// Store implements storage.Store over a *sql.DB.
type Store struct {
	db     *sql.DB
	events string
	meta   string
}

// New creates a store using tables named prefix+"events" and
// prefix+"eventmeta".
func New(db *sql.DB, prefix string) *Store {
	return &Store{
		db:     db,
		events: prefix + "events",
		meta:   prefix + "eventmeta",
	}
}

// Open connects to MySQL. Datetime columns are read back as the stored
// civil strings, so time parsing is switched off whatever the DSN says.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	cfg.ParseTime = false
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	return sql.OpenDB(connector), nil
}

func where(filter storage.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.IDs) > 0 {
		clauses = append(clauses, "id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	for _, col := range []struct {
		name  string
		value string
	}{
		{"object_id", filter.ObjectID},
		{"object_type", filter.ObjectType},
		{"object_subtype", filter.ObjectSubtype},
		{"status", filter.Status},
	} {
		if col.value != "" {
			clauses = append(clauses, col.name+" = ?")
			args = append(args, col.value)
		}
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		clauses = append(clauses, "(title LIKE ? OR content LIKE ?)")
		args = append(args, like, like)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// QueryEvents loads matching events with their metadata.
func (s *Store) QueryEvents(ctx context.Context, filter storage.Filter) ([]event.Event, error) {
	cond, args := where(filter)
	query := "SELECT " + eventColumns + " FROM " + s.events + cond + " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", storage.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var (
		events []event.Event
		index  = map[string]int{}
	)
	for rows.Next() {
		var (
			ev         event.Event
			recurrence string
		)
		if err := rows.Scan(
			&ev.ID, &ev.ObjectID, &ev.ObjectType, &ev.ObjectSubtype,
			&ev.Title, &ev.Content, &ev.Status,
			&ev.Start, &ev.StartTZ, &ev.End, &ev.EndTZ, &ev.AllDay,
			&recurrence, &ev.RecurrenceInterval, &ev.RecurrenceCount,
			&ev.RecurrenceEnd, &ev.RecurrenceEndTZ,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Recurrence = event.Recurrence(recurrence)
		index[ev.ID] = len(events)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if len(events) == 0 {
		return events, nil
	}
	if err := s.loadMeta(ctx, events, index); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) loadMeta(ctx context.Context, events []event.Event, index map[string]int) error {
	args := make([]any, 0, len(events))
	for _, ev := range events {
		args = append(args, ev.ID)
	}
	query := "SELECT event_id, meta_key, meta_value FROM " + s.meta +
		" WHERE event_id IN (" + placeholders(len(args)) + ") ORDER BY meta_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: query meta: %v", storage.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, key, value string
		if err := rows.Scan(&id, &key, &value); err != nil {
			return fmt.Errorf("scan meta: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		if events[i].Meta == nil {
			events[i].Meta = map[string]string{}
		}
		events[i].Meta[key] = value
	}
	return rows.Err()
}

// GetEvent loads one event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (event.Event, error) {
	events, err := s.QueryEvents(ctx, storage.Filter{IDs: []string{id}})
	if err != nil {
		return event.Event{}, err
	}
	if len(events) == 0 {
		return event.Event{}, storage.ErrNotFound
	}
	return events[0], nil
}

// SaveEvent inserts a new event or upserts one with a known id, then
// replaces its metadata.
func (s *Store) SaveEvent(ctx context.Context, ev *event.Event) (err error) {
	if ev == nil {
		return storage.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", storage.ErrStorageUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	values := []any{
		ev.ObjectID, ev.ObjectType, ev.ObjectSubtype, ev.Title, ev.Content, ev.Status,
		ev.Start, ev.StartTZ, ev.End, ev.EndTZ, ev.AllDay,
		string(ev.Recurrence), ev.RecurrenceInterval, ev.RecurrenceCount,
		orZero(ev.RecurrenceEnd), ev.RecurrenceEndTZ,
	}
	columns := strings.SplitN(eventColumns, ", ", 2)[1]

	if ev.ID == "" {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO "+s.events+" ("+columns+") VALUES ("+placeholders(len(values))+")",
			values...)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		ev.ID = strconv.FormatInt(id, 10)
	} else {
		updates := make([]string, 0, len(values))
		for _, col := range strings.Split(columns, ", ") {
			updates = append(updates, col+" = VALUES("+col+")")
		}
		args := append([]any{ev.ID}, values...)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+s.events+" (id, "+columns+") VALUES ("+placeholders(len(args))+")"+
				" ON DUPLICATE KEY UPDATE "+strings.Join(updates, ", "),
			args...); err != nil {
			return fmt.Errorf("upsert event %s: %w", ev.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.meta+" WHERE event_id = ?", ev.ID); err != nil {
		return fmt.Errorf("clear meta: %w", err)
	}
	keys := make([]string, 0, len(ev.Meta))
	for k := range ev.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+s.meta+" (event_id, meta_key, meta_value) VALUES (?, ?, ?)",
			ev.ID, k, ev.Meta[k]); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// DeleteEvents removes matching events and their metadata.
func (s *Store) DeleteEvents(ctx context.Context, filter storage.Filter) (ids []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", storage.ErrStorageUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	cond, args := where(filter)
	rows, err := tx.QueryContext(ctx, "SELECT id FROM "+s.events+cond+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	in := make([]any, len(ids))
	for i, id := range ids {
		in[i] = id
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.meta+" WHERE event_id IN ("+placeholders(len(in))+")", in...); err != nil {
		return nil, fmt.Errorf("delete meta: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+s.events+" WHERE id IN ("+placeholders(len(in))+")", in...); err != nil {
		return nil, fmt.Errorf("delete events: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func orZero(v string) string {
	if v == "" {
		return event.ZeroDateTime
	}
	return v
}
