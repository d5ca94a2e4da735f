package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/bingo-room/internal/bingo"
	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

type GameStore struct {
	db *pgxpool.Pool
}

func NewGameStore(db *pgxpool.Pool) *GameStore {
	return &GameStore{db: db}
}

// FindOpenRoom returns the oldest waiting game.
func (s *GameStore) FindOpenRoom(ctx context.Context) (string, bool, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		SELECT id
		FROM games
		WHERE status = 'waiting'
		ORDER BY created_at
		LIMIT 1
	`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to find open game: %w", err)
	}
	return id, true, nil
}

func (s *GameStore) Create(ctx context.Context, createdAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO games (id, status, created_at, updated_at)
		VALUES ($1, 'waiting', $2, now())
	`, id, createdAt)
	if err != nil {
		return "", fmt.Errorf("could not create game: %w", err)
	}
	return id, nil
}

func (s *GameStore) MarkStarted(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE games
		SET status = 'playing', updated_at = now()
		WHERE id = $1 AND status = 'waiting'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark game %s started: %w", id, err)
	}
	return nil
}

// PersistFinal writes the game row and every player card in one transaction.
func (s *GameStore) PersistFinal(ctx context.Context, game models.Game) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO games (id, status, winner_id, drawn_numbers, current_number, stake, tot_priz, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			winner_id = EXCLUDED.winner_id,
			drawn_numbers = EXCLUDED.drawn_numbers,
			current_number = EXCLUDED.current_number,
			stake = EXCLUDED.stake,
			tot_priz = EXCLUDED.tot_priz,
			updated_at = now()
	`, game.ID, string(game.Status), game.Winner, game.DrawnNumbers, game.CurrentNumber,
		game.Stake, game.TotPrize, game.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert game %s: %w", game.ID, err)
	}

	for _, pc := range game.PlayerCards {
		_, err := tx.Exec(ctx, `
			INSERT INTO player_cards (game_id, user_id, card_numbers, selected_numbers, is_winner, is_disqualified, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (game_id, user_id) DO UPDATE SET
				selected_numbers = EXCLUDED.selected_numbers,
				is_winner = EXCLUDED.is_winner,
				is_disqualified = EXCLUDED.is_disqualified
		`, game.ID, pc.User, flattenRows(pc.CardNumbers), pc.SelectedNumbers,
			pc.IsWinner, pc.IsDisqualified, pc.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert card of %s in game %s: %w", pc.User, game.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CancelStale cancels waiting games created before olderThan, except those in keep.
func (s *GameStore) CancelStale(ctx context.Context, olderThan time.Time, keep []string) (int64, error) {
	if keep == nil {
		keep = []string{}
	}
	res, err := s.db.Exec(ctx, `
		UPDATE games
		SET status = 'cancelled', updated_at = now()
		WHERE status = 'waiting'
		  AND created_at < $1
		  AND NOT (id = ANY($2))
	`, olderThan, keep)
	if err != nil {
		return 0, fmt.Errorf("cancel stale games: %w", err)
	}
	return res.RowsAffected(), nil
}

// List returns up to limit games, newest first, without their cards.
func (s *GameStore) List(ctx context.Context, limit int) ([]models.Game, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, status, created_at, winner_id, drawn_numbers, current_number, stake, tot_priz
		FROM games
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		g.PlayerCards = []models.PlayerCard{}
		games = append(games, g)
	}
	return games, rows.Err()
}

// Get returns one game with its cards, or nil when it does not exist.
func (s *GameStore) Get(ctx context.Context, id string) (*models.Game, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, status, created_at, winner_id, drawn_numbers, current_number, stake, tot_priz
		FROM games
		WHERE id = $1
	`, id)
	g, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT user_id, card_numbers, selected_numbers, is_winner, is_disqualified, created_at
		FROM player_cards
		WHERE game_id = $1
		ORDER BY created_at
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	g.PlayerCards = []models.PlayerCard{}
	for rows.Next() {
		var (
			pc    models.PlayerCard
			cells []int
		)
		if err := rows.Scan(&pc.User, &cells, &pc.SelectedNumbers, &pc.IsWinner, &pc.IsDisqualified, &pc.CreatedAt); err != nil {
			return nil, err
		}
		card, ok := bingo.CardFromCells(cells)
		if !ok {
			return nil, fmt.Errorf("card of %s in game %s has %d cells", pc.User, id, len(cells))
		}
		pc.CardNumbers = cardRows(card)
		g.PlayerCards = append(g.PlayerCards, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &g, nil
}

func scanGame(row pgx.Row) (models.Game, error) {
	var (
		g      models.Game
		status string
	)
	err := row.Scan(
		&g.ID,
		&status,
		&g.CreatedAt,
		&g.Winner,
		&g.DrawnNumbers,
		&g.CurrentNumber,
		&g.Stake,
		&g.TotPrize,
	)
	g.Status = models.Status(status)
	if g.DrawnNumbers == nil {
		g.DrawnNumbers = []int{}
	}
	return g, err
}

func flattenRows(rows [][]int) []int {
	cells := make([]int, 0, bingo.Size*bingo.Size)
	for _, r := range rows {
		cells = append(cells, r...)
	}
	return cells
}

func cardRows(card bingo.Card) [][]int {
	rows := make([][]int, bingo.Size)
	for r := range rows {
		rows[r] = append([]int(nil), card[r][:]...)
	}
	return rows
}
