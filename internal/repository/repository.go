package repository

import (
	"context"
	"database/sql"
	"time"

	hmi "extruder_hmi"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*hmi.User, error)
}

// HistoryRepo persists sampled history so a dashboard restart can seed the
// recorder instead of starting from an empty sequence. The recorder treats
// it as best-effort: the in-memory sequence is authoritative.
type HistoryRepo interface {
	Append(ctx context.Context, e hmi.HistoryEntry) error
	LoadSince(ctx context.Context, cutoff time.Time) ([]hmi.HistoryEntry, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

type Repository struct {
	History HistoryRepo
	Auth    Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		History: NewHistorySQLite(db),
		Auth:    NewUserRepository(db),
	}
}
