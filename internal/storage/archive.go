package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"feed_service/internal/domain"
)

// ArchiveStore persists archive entries: one row per ingested post reference.
type ArchiveStore struct {
	db *sqlx.DB
}

func NewArchiveStore(db *sqlx.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

// Insert stores the entry and returns the sequence id assigned by the
// database. It joins the transaction carried by ctx, if any.
func (s *ArchiveStore) Insert(ctx context.Context, entry *domain.ArchiveEntry) (int64, error) {
	query := s.db.Rebind(`
		INSERT INTO archive (post_id, username, creation_time)
		VALUES (?, ?, ?)
		RETURNING id`)

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		entry.PostID,
		entry.Username,
		entry.CreationTime.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert archive entry %s: %w", entry.PostID, err)
	}

	entry.ID = id
	return id, nil
}

// ListPostIDs returns post ids newest first, windowed by page. A page past
// the end yields an empty slice.
func (s *ArchiveStore) ListPostIDs(ctx context.Context, pageIndex, pageSize int) ([]string, error) {
	query := s.db.Rebind(`
		SELECT post_id
		FROM archive
		ORDER BY creation_time DESC, id DESC
		LIMIT ? OFFSET ?`)

	ids := []string{}
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &ids, query, pageSize, pageIndex*pageSize); err != nil {
		return nil, fmt.Errorf("list archived post ids (index=%d, size=%d): %w", pageIndex, pageSize, err)
	}

	return ids, nil
}
