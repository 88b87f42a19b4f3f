package watch

import (
	"context"
	"database/sql"
	"time"
)

// Store persists playback positions keyed by info hash, so a viewer can
// resume a stream after the session was reaped. Optional; the server runs
// without a database.
type Store struct{ DB *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS playback_progress (
    info_hash  text PRIMARY KEY,
    name       text NOT NULL DEFAULT '',
    position_s integer NOT NULL,
    duration_s integer NOT NULL,
    percent    double precision NOT NULL,
    updated_at timestamptz NOT NULL DEFAULT now()
)`)
	return err
}

func (s *Store) SaveProgress(ctx context.Context, infoHash, name string, pos, dur int) error {
	percent := 0.0
	if dur > 0 {
		percent = float64(pos) / float64(dur) * 100.0
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO playback_progress (info_hash, name, position_s, duration_s, percent, updated_at)
VALUES ($1,$2,$3,$4,$5, now())
ON CONFLICT (info_hash) DO UPDATE
SET name=EXCLUDED.name, position_s=EXCLUDED.position_s, duration_s=EXCLUDED.duration_s,
    percent=EXCLUDED.percent, updated_at=now()`,
		infoHash, name, pos, dur, percent)
	return err
}

type Resume struct {
	InfoHash  string    `json:"infoHash"`
	Name      string    `json:"name"`
	PositionS int       `json:"position_s"`
	DurationS int       `json:"duration_s"`
	Percent   float64   `json:"percent"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetResume returns the saved position, rewound ten seconds so playback
// restarts slightly before the last watched frame. Positions past 95% are
// treated as finished and not offered.
func (s *Store) GetResume(ctx context.Context, infoHash string) (Resume, bool, error) {
	var r Resume
	err := s.DB.QueryRowContext(ctx, `
SELECT info_hash, name, position_s, duration_s, percent, updated_at
FROM playback_progress WHERE info_hash=$1`,
		infoHash).Scan(&r.InfoHash, &r.Name, &r.PositionS, &r.DurationS, &r.Percent, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Resume{}, false, nil
		}
		return Resume{}, false, err
	}
	if r.Percent > 95 {
		return Resume{}, false, nil
	}
	if r.PositionS > 10 {
		r.PositionS -= 10
	} else {
		r.PositionS = 0
	}
	return r, true, nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]Resume, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT info_hash, name, position_s, duration_s, percent, updated_at
FROM playback_progress
WHERE percent BETWEEN 1 AND 95
ORDER BY updated_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Resume
	for rows.Next() {
		var r Resume
		if err := rows.Scan(&r.InfoHash, &r.Name, &r.PositionS, &r.DurationS, &r.Percent, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, infoHash string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM playback_progress WHERE info_hash=$1`, infoHash)
	return err
}
