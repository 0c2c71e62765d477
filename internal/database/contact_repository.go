package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foliosend/foliosend/pkg/models"
)

// Contact Repository Methods

// UpsertContact merges a viewer's session-close delta into the owner's
// contact row. The merge mirrors scoring.MergeContacts: counts and time
// are summed, engagement is a view-weighted mean, hot_lead is sticky,
// and the seen window widens. Running it per closed session in any
// order yields the same row.
func (r *Repository) UpsertContact(ctx context.Context, contact *models.Contact) error {
	query := `
		INSERT INTO contacts (
			id, owner_id, viewer_key, email, ip_address,
			view_count, total_time, avg_engagement, hot_lead, first_seen, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (owner_id, viewer_key) DO UPDATE
		SET email = CASE WHEN contacts.email = '' THEN EXCLUDED.email ELSE contacts.email END,
		    ip_address = CASE WHEN contacts.ip_address = '' THEN EXCLUDED.ip_address ELSE contacts.ip_address END,
		    view_count = contacts.view_count + EXCLUDED.view_count,
		    total_time = contacts.total_time + EXCLUDED.total_time,
		    avg_engagement = (contacts.avg_engagement * contacts.view_count + EXCLUDED.avg_engagement * EXCLUDED.view_count)
		        / GREATEST(contacts.view_count + EXCLUDED.view_count, 1),
		    hot_lead = contacts.hot_lead OR EXCLUDED.hot_lead,
		    first_seen = LEAST(contacts.first_seen, EXCLUDED.first_seen),
		    last_seen = GREATEST(contacts.last_seen, EXCLUDED.last_seen)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		contact.ID, contact.OwnerID, contact.ViewerKey,
		contact.Email, contact.IPAddress,
		contact.ViewCount, contact.TotalTime, contact.AvgEngagement,
		contact.HotLead, contact.FirstSeen, contact.LastSeen,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}

	return nil
}

// GetContact retrieves one contact by owner and viewer key
func (r *Repository) GetContact(ctx context.Context, ownerID, viewerKey string) (*models.Contact, error) {
	query := `
		SELECT id, owner_id, viewer_key, email, ip_address,
		       view_count, total_time, avg_engagement, hot_lead, first_seen, last_seen
		FROM contacts
		WHERE owner_id = $1 AND viewer_key = $2
	`

	var contact models.Contact
	err := r.db.Pool.QueryRow(ctx, query, ownerID, viewerKey).Scan(
		&contact.ID, &contact.OwnerID, &contact.ViewerKey,
		&contact.Email, &contact.IPAddress,
		&contact.ViewCount, &contact.TotalTime, &contact.AvgEngagement,
		&contact.HotLead, &contact.FirstSeen, &contact.LastSeen,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("contact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}

// ListContacts retrieves an owner's contacts, hottest and most recent first
func (r *Repository) ListContacts(ctx context.Context, ownerID string, limit, offset int) ([]*models.Contact, error) {
	query := `
		SELECT id, owner_id, viewer_key, email, ip_address,
		       view_count, total_time, avg_engagement, hot_lead, first_seen, last_seen
		FROM contacts
		WHERE owner_id = $1
		ORDER BY hot_lead DESC, last_seen DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		var contact models.Contact
		err := rows.Scan(
			&contact.ID, &contact.OwnerID, &contact.ViewerKey,
			&contact.Email, &contact.IPAddress,
			&contact.ViewCount, &contact.TotalTime, &contact.AvgEngagement,
			&contact.HotLead, &contact.FirstSeen, &contact.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, &contact)
	}

	return contacts, nil
}
