package store

import (
	"context"
	"time"
)

// GameResultStore holds anti-cheat verdicts written by the verification
// collaborator. A verified result is claimable exactly once.
type GameResultStore struct {
	db DB
}

type GameResult struct {
	GameID       string     `db:"game_id"`
	UserID       string     `db:"user_id"`
	Verified     bool       `db:"verified"`
	RewardAmount int64      `db:"reward_amount"`
	ConsumedAt   *time.Time `db:"consumed_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

func NewGameResultStore(db DB) *GameResultStore {
	return &GameResultStore{db: db}
}

func (s *GameResultStore) Record(ctx context.Context, tx Execer, gameID, userID string, verified bool, rewardAmount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO game_results (game_id, user_id, verified, reward_amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, user_id) DO NOTHING
	`, gameID, userID, verified, rewardAmount)
	return err
}

func (s *GameResultStore) Get(ctx context.Context, gameID, userID string) (GameResult, error) {
	var result GameResult
	err := s.db.GetContext(ctx, &result, `
		SELECT game_id, user_id, verified, reward_amount, consumed_at, created_at
		FROM game_results
		WHERE game_id = $1 AND user_id = $2
	`, gameID, userID)
	return result, err
}

// Consume marks a verified result claimed. Returns 0 rows when the result is
// unverified or already consumed, so a replayed claim cannot credit twice.
func (s *GameResultStore) Consume(ctx context.Context, tx Execer, gameID, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE game_results
		SET consumed_at = NOW()
		WHERE game_id = $1 AND user_id = $2 AND verified = TRUE AND consumed_at IS NULL
	`, gameID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
