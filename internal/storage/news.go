package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// News is a persisted news record. Records created by the sync pipeline
// carry the source post ID and permalink; hand-authored records leave
// them empty.
type News struct {
	ID          string
	Title       string
	Slug        string
	Content     string
	Excerpt     string
	Image       string
	Published   bool
	PublishedAt time.Time
	VKPostID    string
	VKLink      string
	AuthorID    string
	CreatedAt   time.Time
}

const newsColumns = `id, title, slug, content, excerpt, image, published, published_at, vk_post_id, vk_link, author_id, created_at`

// CreateNews inserts a news record, generating its ID.
func (db *DB) CreateNews(ctx context.Context, n *News) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO news (id, title, slug, content, excerpt, image, published, published_at, vk_post_id, vk_link, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.Title, n.Slug, n.Content, toText(n.Excerpt), toText(n.Image),
		n.Published, toTimestamptz(n.PublishedAt), toText(n.VKPostID), toText(n.VKLink), n.AuthorID,
	)
	if err != nil {
		return fmt.Errorf("create news: %w", err)
	}

	return nil
}

// FindNewsByVKPostID looks up a record by its source post ID. Returns
// (nil, nil) when no record exists.
func (db *DB) FindNewsByVKPostID(ctx context.Context, vkPostID string) (*News, error) {
	return db.findNews(ctx, "vk_post_id", vkPostID)
}

// FindNewsBySlug looks up a record by slug. Returns (nil, nil) when no
// record exists.
func (db *DB) FindNewsBySlug(ctx context.Context, slug string) (*News, error) {
	return db.findNews(ctx, "slug", slug)
}

func (db *DB) findNews(ctx context.Context, column, value string) (*News, error) {
	row := db.Pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM news WHERE %s = $1", newsColumns, column), value)

	n, err := scanNews(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("find news by %s: %w", column, err)
	}

	return n, nil
}

func scanNews(row pgx.Row) (*News, error) {
	var (
		n           News
		excerpt     pgtype.Text
		image       pgtype.Text
		vkPostID    pgtype.Text
		vkLink      pgtype.Text
		publishedAt pgtype.Timestamptz
	)

	err := row.Scan(&n.ID, &n.Title, &n.Slug, &n.Content, &excerpt, &image,
		&n.Published, &publishedAt, &vkPostID, &vkLink, &n.AuthorID, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	n.Excerpt = fromText(excerpt)
	n.Image = fromText(image)
	n.VKPostID = fromText(vkPostID)
	n.VKLink = fromText(vkLink)

	if publishedAt.Valid {
		n.PublishedAt = publishedAt.Time
	}

	return &n, nil
}
