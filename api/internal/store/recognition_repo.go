package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type RecognitionRepo struct{ DB *sql.DB }

func NewRecognitionRepo(db *sql.DB) *RecognitionRepo { return &RecognitionRepo{DB: db} }

// Record: одна обработанная картинка.
type Record struct {
	RequestID  string
	CreatedAt  time.Time
	ImageHash  string
	Lang       string
	Model      string
	Detections int
	Text       string
	Error      string
	Duration   time.Duration
}

const schema = `
create table if not exists recognitions (
  id          bigserial primary key,
  request_id  text not null unique,
  created_at  timestamptz not null default now(),
  image_hash  text not null,
  lang        text not null,
  model       text not null,
  detections  integer not null default 0,
  text        text not null default '',
  error       text not null default '',
  duration_ms integer not null default 0
);
create index if not exists recognitions_image_hash_idx on recognitions (image_hash);
create index if not exists recognitions_created_at_idx on recognitions (created_at);`

func (r *RecognitionRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// Insert сохраняет запись; повтор request_id игнорируется.
func (r *RecognitionRepo) Insert(ctx context.Context, rec Record) error {
	const q = `
insert into recognitions (request_id, image_hash, lang, model, detections, text, error, duration_ms)
values ($1,$2,$3,$4,$5,$6,$7,$8)
on conflict (request_id) do nothing`
	_, err := r.DB.ExecContext(ctx, q,
		rec.RequestID, rec.ImageHash, rec.Lang, rec.Model,
		rec.Detections, rec.Text, rec.Error, rec.Duration.Milliseconds(),
	)
	return err
}

// PurgeOlderThan удаляет старые записи, чтобы не раздувать БД.
func (r *RecognitionRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from recognitions where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
