package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
)

// Tracker records assessment submissions so that repeated requests for the
// same AOI and fire window can be observed rather than silently re-run
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a new run ledger
func NewTracker(db *sql.DB) (*Tracker, error) {
	tracker := &Tracker{db: db}

	if err := tracker.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure assessment_runs table: %w", err)
	}

	return tracker, nil
}

// ensureTable creates the assessment_runs table if it doesn't exist
func (t *Tracker) ensureTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS assessment_runs (
			aoi_digest TEXT,
			start_date TEXT,
			end_date TEXT,
			strategy TEXT,
			first_seen_at TIMESTAMPTZ DEFAULT NOW(),
			last_seen_at TIMESTAMPTZ DEFAULT NOW(),
			seen_count INTEGER DEFAULT 1,
			PRIMARY KEY (aoi_digest, start_date, end_date)
		)
	`

	_, err := t.db.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create assessment_runs table: %w", err)
	}

	log.Printf("✓ assessment_runs table ready")
	return nil
}

// Record records an assessment submission and returns the seen count
func (t *Tracker) Record(ctx context.Context, aoiDigest, startDate, endDate, strategy string) (int, error) {
	query := `
		INSERT INTO assessment_runs (aoi_digest, start_date, end_date, strategy, first_seen_at, last_seen_at, seen_count)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 1)
		ON CONFLICT (aoi_digest, start_date, end_date) DO UPDATE
		SET last_seen_at = NOW(),
		    seen_count = assessment_runs.seen_count + 1,
		    strategy = EXCLUDED.strategy
		RETURNING seen_count
	`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, aoiDigest, startDate, endDate, strategy).Scan(&seenCount)
	if err != nil {
		return 0, fmt.Errorf("failed to record submission: %w", err)
	}

	return seenCount, nil
}

// GetSeenCount retrieves the seen count for an AOI digest and fire window
func (t *Tracker) GetSeenCount(ctx context.Context, aoiDigest, startDate, endDate string) (int, error) {
	query := `SELECT seen_count FROM assessment_runs WHERE aoi_digest = $1 AND start_date = $2 AND end_date = $3`

	var seenCount int
	err := t.db.QueryRowContext(ctx, query, aoiDigest, startDate, endDate).Scan(&seenCount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get seen count: %w", err)
	}

	return seenCount, nil
}

// Digest returns a stable hex digest of an AOI geometry for ledger keying
func Digest(aoi json.RawMessage) string {
	sum := sha256.Sum256(aoi)
	return hex.EncodeToString(sum[:])
}
