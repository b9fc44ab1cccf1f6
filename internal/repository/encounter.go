package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lobby-scout/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// EncounterRepository persists the journal of players observed across
// scouting sessions.
type EncounterRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewEncounterRepository(sqlDB *sql.DB, logger zerolog.Logger) *EncounterRepository {
	return &EncounterRepository{db: sqlDB, logger: logger}
}

func (r *EncounterRepository) Record(ctx context.Context, enc *domain.Encounter) error {
	if enc.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate encounter id: %w", err)
		}
		enc.ID = id
	}
	if enc.SeenAt.IsZero() {
		enc.SeenAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO encounters (id, session_id, opaque_id, display_name, character_id, team, seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		enc.ID, enc.SessionID, enc.OpaqueID, enc.DisplayName, enc.CharacterID, enc.Team, enc.SeenAt)
	if err != nil {
		r.logger.Error().Err(err).Str("opaque_id", enc.OpaqueID).Msg("failed to insert encounter")
		return fmt.Errorf("failed to insert encounter: %w", err)
	}
	return nil
}

// CountForPlayer returns how many earlier sessions the player was seen in,
// excluding the session passed in.
func (r *EncounterRepository) CountForPlayer(ctx context.Context, opaqueID, excludeSession string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_id) FROM encounters WHERE opaque_id = ? AND session_id != ?`,
		opaqueID, excludeSession).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count encounters: %w", err)
	}
	return count, nil
}

// RecentForPlayer returns the player's most recent journal rows, newest
// first.
func (r *EncounterRepository) RecentForPlayer(ctx context.Context, opaqueID string, limit int) ([]domain.Encounter, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, opaque_id, display_name, character_id, team, seen_at
		 FROM encounters WHERE opaque_id = ? ORDER BY seen_at DESC LIMIT ?`,
		opaqueID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query encounters: %w", err)
	}
	defer rows.Close()

	var encounters []domain.Encounter
	for rows.Next() {
		var enc domain.Encounter
		if err := rows.Scan(&enc.ID, &enc.SessionID, &enc.OpaqueID, &enc.DisplayName, &enc.CharacterID, &enc.Team, &enc.SeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan encounter: %w", err)
		}
		encounters = append(encounters, enc)
	}
	return encounters, rows.Err()
}
