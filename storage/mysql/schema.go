package mysql

import (
	"context"
	"fmt"
)

// Schema returns the DDL for the event tables.
func (s *Store) Schema() []string {
	return []string{
		"CREATE TABLE IF NOT EXISTS " + s.events + ` (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	object_id VARCHAR(64) NOT NULL DEFAULT '',
	object_type VARCHAR(32) NOT NULL DEFAULT '',
	object_subtype VARCHAR(32) NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	content LONGTEXT NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT '',
	` + "`start`" + ` DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	start_tz VARCHAR(64) NOT NULL DEFAULT '',
	` + "`end`" + ` DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	end_tz VARCHAR(64) NOT NULL DEFAULT '',
	all_day TINYINT(1) NOT NULL DEFAULT 0,
	recurrence VARCHAR(20) NOT NULL DEFAULT '',
	recurrence_interval BIGINT UNSIGNED NOT NULL DEFAULT 0,
	recurrence_count BIGINT UNSIGNED NOT NULL DEFAULT 0,
	recurrence_end DATETIME NOT NULL DEFAULT '0000-00-00 00:00:00',
	recurrence_end_tz VARCHAR(64) NOT NULL DEFAULT '',
	PRIMARY KEY (id),
	KEY object (object_id, object_type, object_subtype),
	KEY status (status)
) DEFAULT CHARSET=utf8mb4`,
		"CREATE TABLE IF NOT EXISTS " + s.meta + ` (
	meta_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	event_id BIGINT UNSIGNED NOT NULL,
	meta_key VARCHAR(255) NOT NULL,
	meta_value LONGTEXT NOT NULL,
	PRIMARY KEY (meta_id),
	KEY event_id (event_id),
	KEY meta_key (meta_key(191))
) DEFAULT CHARSET=utf8mb4`,
	}
}

// Migrate creates the event tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, ddl := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
