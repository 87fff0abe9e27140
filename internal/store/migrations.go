package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Archive catalog and hindcast values",
		SQL: `
CREATE TABLE IF NOT EXISTS datasets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    variable TEXT NOT NULL,
    init_month INTEGER NOT NULL,
    members INTEGER NOT NULL,
    leads TEXT NOT NULL,
    cells INTEGER NOT NULL,
    source TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS hindcast_values (
    dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
    init_year INTEGER NOT NULL,
    member INTEGER NOT NULL,
    lead INTEGER NOT NULL,
    cell INTEGER NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (dataset_id, init_year, member, lead, cell)
);

CREATE INDEX IF NOT EXISTS idx_hindcast_init ON hindcast_values(dataset_id, init_year);
`,
	},
	{
		Version:     2,
		Description: "Region masks and cell areas",
		SQL: `
CREATE TABLE IF NOT EXISTS region_masks (
    region TEXT NOT NULL,
    cell INTEGER NOT NULL,
    PRIMARY KEY (region, cell)
);

CREATE TABLE IF NOT EXISTS cell_areas (
    cell INTEGER PRIMARY KEY,
    area REAL NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "Regional and gridded boundary datasets",
		SQL: `
CREATE TABLE IF NOT EXISTS regional_boundaries (
    dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
    region TEXT NOT NULL,
    lead INTEGER NOT NULL,
    f_lowmid REAL NOT NULL,
    f_midhigh REAL NOT NULL,
    provenance TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (dataset_id, region, lead)
);

CREATE TABLE IF NOT EXISTS gridded_boundaries (
    variable TEXT NOT NULL,
    init_month INTEGER NOT NULL,
    lead INTEGER NOT NULL,
    cell INTEGER NOT NULL,
    f_lowmid REAL NOT NULL,
    f_midhigh REAL NOT NULL,
    PRIMARY KEY (variable, init_month, lead, cell)
);
`,
	},
	{
		Version:     4,
		Description: "Inference output artifacts",
		SQL: `
CREATE TABLE IF NOT EXISTS tercile_prob (
    variable TEXT NOT NULL,
    init_year INTEGER NOT NULL,
    init_month INTEGER NOT NULL,
    window INTEGER NOT NULL,
    cell INTEGER NOT NULL,
    category INTEGER NOT NULL CHECK (category IN (-1, 0, 1)),
    prob REAL NOT NULL,
    PRIMARY KEY (variable, init_year, init_month, window, cell, category)
);

CREATE TABLE IF NOT EXISTS tercile_prob_max (
    variable TEXT NOT NULL,
    init_year INTEGER NOT NULL,
    init_month INTEGER NOT NULL,
    window INTEGER NOT NULL,
    cell INTEGER NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (variable, init_year, init_month, window, cell)
);
`,
	},
}

// Migrate applies all pending schema migrations in order.
func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d: %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
