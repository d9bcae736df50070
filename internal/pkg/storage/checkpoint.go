package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/pkg/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Checkpoint persists the latest snapshot as a single row so a restarted
// process can serve the last known teams before its first extraction.
type Checkpoint struct {
	db     *sql.DB
	driver string
}

// NewCheckpoint opens the database named by cfg and creates the table.
func NewCheckpoint(ctx context.Context, cfg config.CheckpointConfig) (*Checkpoint, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("checkpoint DSN is required")
	}
	if cfg.Driver != DriverPostgres && cfg.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported checkpoint driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	c := &Checkpoint{db: db, driver: cfg.Driver}
	if err := c.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("Checkpoint storage initialized", "driver", cfg.Driver)
	return c, nil
}

func (c *Checkpoint) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS matchfeed_checkpoint (
		id INTEGER PRIMARY KEY,
		status VARCHAR(32) NOT NULL,
		home_team VARCHAR(255) NOT NULL DEFAULT '',
		away_team VARCHAR(255) NOT NULL DEFAULT '',
		strategy VARCHAR(64) NOT NULL DEFAULT '',
		diagnostic TEXT NOT NULL DEFAULT '',
		session_id VARCHAR(64) NOT NULL DEFAULT '',
		last_updated BIGINT,
		saved_at BIGINT NOT NULL
	)`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

func (c *Checkpoint) Name() string { return "checkpoint" }

// Write upserts snap into the single checkpoint row.
func (c *Checkpoint) Write(ctx context.Context, snap models.Snapshot) error {
	query := c.rebind(`
	INSERT INTO matchfeed_checkpoint (
		id, status, home_team, away_team, strategy,
		diagnostic, session_id, last_updated, saved_at
	) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		home_team = EXCLUDED.home_team,
		away_team = EXCLUDED.away_team,
		strategy = EXCLUDED.strategy,
		diagnostic = EXCLUDED.diagnostic,
		session_id = EXCLUDED.session_id,
		last_updated = EXCLUDED.last_updated,
		saved_at = EXCLUDED.saved_at
	`)

	var lastUpdated sql.NullInt64
	if !snap.LastUpdated.IsZero() {
		lastUpdated = sql.NullInt64{Int64: snap.LastUpdated.UnixMilli(), Valid: true}
	}

	_, err := c.db.ExecContext(ctx, query,
		string(snap.Status), snap.HomeTeam, snap.AwayTeam, snap.Strategy,
		snap.Diagnostic, snap.SessionID, lastUpdated, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the saved snapshot. ok is false when nothing was saved yet.
func (c *Checkpoint) Load(ctx context.Context) (snap models.Snapshot, ok bool, err error) {
	query := `
	SELECT status, home_team, away_team, strategy, diagnostic, session_id, last_updated
	FROM matchfeed_checkpoint WHERE id = 1
	`
	var (
		status      string
		lastUpdated sql.NullInt64
	)
	err = c.db.QueryRowContext(ctx, query).Scan(
		&status, &snap.HomeTeam, &snap.AwayTeam, &snap.Strategy,
		&snap.Diagnostic, &snap.SessionID, &lastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, false, nil
	}
	if err != nil {
		return models.Snapshot{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	snap.Status = models.Status(status)
	if lastUpdated.Valid {
		snap.LastUpdated = time.UnixMilli(lastUpdated.Int64)
	}
	return snap, true, nil
}

// Close closes the database connection.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}

// rebind turns ? placeholders into $n for postgres.
func (c *Checkpoint) rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Restore turns a saved snapshot into the state a new process starts from:
// teams and timestamps survive, status starts over.
func Restore(saved models.Snapshot) models.Snapshot {
	return saved.WithStatus(models.StatusInitializing, "")
}
