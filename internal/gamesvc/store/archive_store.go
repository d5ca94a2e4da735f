package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

const ArchiveCollection = "game_archive"

// ArchiveStore keeps full snapshots of closed games in MongoDB. Documents carry
// an expires_at field for the collection's TTL index.
type ArchiveStore struct {
	coll      *mongo.Collection
	retention time.Duration
}

func NewArchiveStore(db *mongo.Database, retention time.Duration) *ArchiveStore {
	return &ArchiveStore{coll: db.Collection(ArchiveCollection), retention: retention}
}

type archivedGame struct {
	models.Game `bson:",inline"`
	Stake       string    `bson:"stake"`
	TotPrize    string    `bson:"tot_prize"`
	ArchivedAt  time.Time `bson:"archived_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
}

func newArchivedGame(game models.Game, now time.Time, retention time.Duration) archivedGame {
	return archivedGame{
		Game:       game,
		Stake:      game.Stake.StringFixed(2),
		TotPrize:   game.TotPrize.StringFixed(2),
		ArchivedAt: now,
		ExpiresAt:  now.Add(retention),
	}
}

func (s *ArchiveStore) Archive(ctx context.Context, game models.Game) error {
	doc := newArchivedGame(game, time.Now(), s.retention)

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": game.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("archive game %s: %w", game.ID, err)
	}
	return nil
}

// ArchivingRepository writes final games to the primary repository and then
// to the archive. Archive failures are returned but never undo the primary write.
type ArchivingRepository struct {
	Primary
	archive *ArchiveStore
}

// Primary is the repository the archive decorates.
type Primary interface {
	FindOpenRoom(ctx context.Context) (string, bool, error)
	Create(ctx context.Context, createdAt time.Time) (string, error)
	MarkStarted(ctx context.Context, id string) error
	PersistFinal(ctx context.Context, game models.Game) error
	CancelStale(ctx context.Context, olderThan time.Time, keep []string) (int64, error)
	List(ctx context.Context, limit int) ([]models.Game, error)
	Get(ctx context.Context, id string) (*models.Game, error)
}

func NewArchivingRepository(primary Primary, archive *ArchiveStore) *ArchivingRepository {
	return &ArchivingRepository{Primary: primary, archive: archive}
}

func (r *ArchivingRepository) PersistFinal(ctx context.Context, game models.Game) error {
	if err := r.Primary.PersistFinal(ctx, game); err != nil {
		return err
	}
	return r.archive.Archive(ctx, game)
}
