package funding

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository handles the funding read model used by the expiry sweep
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new funding repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindExpiredActive returns every active funding whose end date has passed,
// joined with its owner's contact fields
func (r *Repository) FindExpiredActive(ctx context.Context, asOf time.Time) ([]*ExpiredFunding, error) {
	query := `
		SELECT f.id, f.user_id, f.title, f.end_date, f.status,
		       u.email, u.is_email_notification_agreed
		FROM fundings f
		JOIN users u ON u.id = f.user_id
		WHERE f.end_date <= $1 AND f.status = $2
	`

	rows, err := r.db.QueryContext(ctx, query, asOf, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired fundings: %w", err)
	}
	defer rows.Close()

	var fundings []*ExpiredFunding
	for rows.Next() {
		f := &ExpiredFunding{}
		if err := rows.Scan(
			&f.ID,
			&f.UserID,
			&f.Title,
			&f.EndDate,
			&f.Status,
			&f.Owner.Email,
			&f.Owner.EmailOptIn,
		); err != nil {
			return nil, fmt.Errorf("failed to scan funding: %w", err)
		}
		f.Owner.ID = f.UserID
		fundings = append(fundings, f)
	}

	return fundings, nil
}

// MarkFinished transitions a funding to the finished state
func (r *Repository) MarkFinished(ctx context.Context, id int64) error {
	query := `UPDATE fundings SET status = $1 WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, StatusFinished, id)
	if err != nil {
		return fmt.Errorf("failed to mark funding as finished: %w", err)
	}
	return nil
}
