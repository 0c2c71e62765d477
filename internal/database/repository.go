package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/foliosend/foliosend/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health reports whether the underlying database is reachable
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Links

// CreateLink creates a new link record
func (r *Repository) CreateLink(ctx context.Context, link *models.Link) error {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	if link.Slug == "" {
		link.Slug = link.ID[:8]
	}

	query := `
		INSERT INTO links (id, owner_id, slug, title, content_type, target_url, object_key,
		                   file_name, file_size, total_pages, video_duration, allow_download)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		link.ID, link.OwnerID, link.Slug, link.Title, link.ContentType, link.TargetURL,
		link.ObjectKey, link.FileName, link.FileSize, link.TotalPages, link.VideoDuration,
		link.AllowDownload,
	).Scan(&link.CreatedAt, &link.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetLink retrieves a link by ID
func (r *Repository) GetLink(ctx context.Context, id string) (*models.Link, error) {
	return r.getLinkBy(ctx, "id", id)
}

// GetLinkBySlug retrieves a link by its shared-URL slug
func (r *Repository) GetLinkBySlug(ctx context.Context, slug string) (*models.Link, error) {
	return r.getLinkBy(ctx, "slug", slug)
}

func (r *Repository) getLinkBy(ctx context.Context, column, value string) (*models.Link, error) {
	var link models.Link

	query := fmt.Sprintf(`
		SELECT id, owner_id, slug, title, content_type, target_url, object_key,
		       file_name, file_size, total_pages, video_duration, allow_download,
		       created_at, updated_at, deleted_at
		FROM links
		WHERE %s = $1 AND deleted_at IS NULL
	`, column)

	err := r.db.Pool.QueryRow(ctx, query, value).Scan(
		&link.ID, &link.OwnerID, &link.Slug, &link.Title, &link.ContentType,
		&link.TargetURL, &link.ObjectKey, &link.FileName, &link.FileSize,
		&link.TotalPages, &link.VideoDuration, &link.AllowDownload,
		&link.CreatedAt, &link.UpdatedAt, &link.DeletedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("link not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &link, nil
}

// ListLinks retrieves all active links owned by a user
func (r *Repository) ListLinks(ctx context.Context, ownerID string, limit, offset int) ([]*models.Link, error) {
	query := `
		SELECT id, owner_id, slug, title, content_type, target_url, object_key,
		       file_name, file_size, total_pages, video_duration, allow_download,
		       created_at, updated_at, deleted_at
		FROM links
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []*models.Link
	for rows.Next() {
		var link models.Link
		err := rows.Scan(
			&link.ID, &link.OwnerID, &link.Slug, &link.Title, &link.ContentType,
			&link.TargetURL, &link.ObjectKey, &link.FileName, &link.FileSize,
			&link.TotalPages, &link.VideoDuration, &link.AllowDownload,
			&link.CreatedAt, &link.UpdatedAt, &link.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, &link)
	}

	return links, nil
}

// UpdateLink updates a link's mutable fields
func (r *Repository) UpdateLink(ctx context.Context, link *models.Link) error {
	query := `
		UPDATE links
		SET title = $2, target_url = $3, total_pages = $4, video_duration = $5,
		    allow_download = $6, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	_, err := r.db.Pool.Exec(ctx, query,
		link.ID, link.Title, link.TargetURL, link.TotalPages, link.VideoDuration,
		link.AllowDownload,
	)

	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}

	return nil
}

// SetLinkFile records the stored object backing a link after an upload
func (r *Repository) SetLinkFile(ctx context.Context, linkID, objectKey, fileName string, fileSize int64) error {
	query := `
		UPDATE links
		SET object_key = $2, file_name = $3, file_size = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	_, err := r.db.Pool.Exec(ctx, query, linkID, objectKey, fileName, fileSize)
	if err != nil {
		return fmt.Errorf("failed to set link file: %w", err)
	}

	return nil
}

// SoftDeleteLink marks a link deleted without touching its sessions
func (r *Repository) SoftDeleteLink(ctx context.Context, id string) error {
	query := `UPDATE links SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	return nil
}

// ListStaleLinks returns links whose cached aggregates are older than
// the given interval, for the background refresh job.
func (r *Repository) ListStaleLinks(ctx context.Context, olderThan string, limit int) ([]string, error) {
	query := `
		SELECT l.id
		FROM links l
		LEFT JOIN link_analytics a ON a.link_id = l.id
		WHERE l.deleted_at IS NULL
		  AND (a.last_updated IS NULL OR a.last_updated < NOW() - $1::interval)
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale links: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan link id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
