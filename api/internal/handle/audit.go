package handle

import (
	"context"

	"ffmemes-ocr/api/internal/store"
)

// RepoAuditor writes records to Postgres.
type RepoAuditor struct{ Repo *store.RecognitionRepo }

func (a RepoAuditor) Record(ctx context.Context, rec store.Record) error {
	return a.Repo.Insert(ctx, rec)
}
