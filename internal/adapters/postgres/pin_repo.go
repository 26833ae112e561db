package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

const pinColumns = `
	p.id::text, p.title, p.description, p.category, p.lat, p.lng,
	p.tags, p.rating::float8, p.images, p.is_public, p.status,
	p.owner_id::text, COALESCE(u.username, ''), p.created_at, p.confirmations_count`

// PinRepo implements ports.PinRepository with pgx. It never writes
// confirmations_count; CounterMaintainer owns that column.
type PinRepo struct {
	db *DB
}

// NewPinRepo creates a new PinRepo.
func NewPinRepo(db *DB) *PinRepo {
	return &PinRepo{db: db}
}

func scanPin(row pgx.Row, p *domain.Pin) error {
	var status string
	if err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Category, &p.Lat, &p.Lng,
		&p.Tags, &p.Rating, &p.Images, &p.IsPublic, &status,
		&p.OwnerID, &p.OwnerUsername, &p.CreatedAt, &p.ConfirmationsCount,
	); err != nil {
		return err
	}
	p.Status = domain.PinStatus(status)
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return nil
}

// Create inserts a pin and fills in its id and creation time.
func (r *PinRepo) Create(ctx context.Context, p *domain.Pin) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO pins (title, description, category, lat, lng, tags, rating, images, is_public, status, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11)
		RETURNING id::text, created_at, confirmations_count
	`, p.Title, p.Description, p.Category, p.Lat, p.Lng, p.Tags, p.Rating, p.Images,
		p.IsPublic, string(p.Status), p.OwnerID,
	).Scan(&p.ID, &p.CreatedAt, &p.ConfirmationsCount)
	if err != nil {
		return fmt.Errorf("insert pin: %w", mapForeignKey(err))
	}
	return nil
}

// GetByID returns a pin by UUID, or domain.ErrNotFound.
func (r *PinRepo) GetByID(ctx context.Context, id string) (*domain.Pin, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	var p domain.Pin
	err := scanPin(r.db.Pool.QueryRow(ctx, `
		SELECT `+pinColumns+`
		FROM pins p LEFT JOIN users u ON u.id = p.owner_id
		WHERE p.id = $1
	`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns one page of pins matching q, newest first, and the total
// number of matches.
func (r *PinRepo) List(ctx context.Context, q domain.PinQuery) ([]domain.Pin, int, error) {
	where, args := buildPinFilter(q)

	var total int
	if err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM pins p LEFT JOIN users u ON u.id = p.owner_id
	`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pins: %w", err)
	}
	if total == 0 || q.Offset >= total {
		return []domain.Pin{}, total, nil
	}

	n := len(args)
	args = append(args, q.Limit, q.Offset)
	rows, err := r.db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM pins p LEFT JOIN users u ON u.id = p.owner_id
		%s
		ORDER BY p.created_at DESC, p.id
		LIMIT $%d OFFSET $%d
	`, pinColumns, where, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list pins: %w", err)
	}
	defer rows.Close()

	pins := make([]domain.Pin, 0, q.Limit)
	for rows.Next() {
		var p domain.Pin
		if err := scanPin(rows, &p); err != nil {
			return nil, 0, err
		}
		pins = append(pins, p)
	}
	return pins, total, rows.Err()
}

// buildPinFilter renders q as a WHERE clause. The visibility scope is always
// the first conjunct; every caller filter is ANDed after it.
func buildPinFilter(q domain.PinQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !q.Unrestricted {
		if _, err := uuid.Parse(q.ViewerID); err == nil {
			conds = append(conds, "((p.status = 'active' AND p.is_public) OR p.owner_id = "+arg(q.ViewerID)+")")
		} else {
			conds = append(conds, "(p.status = 'active' AND p.is_public)")
		}
	}
	if q.Status != "" {
		conds = append(conds, "lower(p.status) = "+arg(q.Status))
	}
	if q.IsPublic != nil {
		conds = append(conds, "p.is_public = "+arg(*q.IsPublic))
	}
	if b := q.Bounds; b != nil {
		conds = append(conds, fmt.Sprintf("p.lng BETWEEN %s AND %s AND p.lat BETWEEN %s AND %s",
			arg(b.West), arg(b.East), arg(b.South), arg(b.North)))
	}
	if q.Category != "" {
		conds = append(conds, "lower(p.category) = lower("+arg(q.Category)+")")
	}
	if q.MinRating != nil {
		conds = append(conds, "p.rating >= "+arg(*q.MinRating)+"::numeric")
	}
	for _, term := range q.Terms {
		ph := arg("%" + escapeLike(term) + "%")
		c := fmt.Sprintf(`p.title ILIKE %[1]s ESCAPE '\' OR p.description ILIKE %[1]s ESCAPE '\'`, ph)
		if q.AdminSearch {
			c += fmt.Sprintf(` OR u.username ILIKE %[1]s ESCAPE '\' OR p.id::text ILIKE %[1]s ESCAPE '\'`, ph)
		}
		conds = append(conds, "("+c+")")
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// UpdateContent writes the client-editable fields of a pin.
func (r *PinRepo) UpdateContent(ctx context.Context, p *domain.Pin) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE pins
		SET title = $2, description = $3, category = $4, lat = $5, lng = $6,
		    tags = $7, rating = $8::numeric, images = $9
		WHERE id = $1
	`, p.ID, p.Title, p.Description, p.Category, p.Lat, p.Lng, p.Tags, p.Rating, p.Images)
	if err != nil {
		return fmt.Errorf("update pin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a pin. Its confirmations go with it by cascade.
func (r *PinRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM pins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetStatus moves the given pins to status and visibility and returns the
// ids it updated.
func (r *PinRepo) SetStatus(ctx context.Context, ids []string, status domain.PinStatus, isPublic bool) ([]string, error) {
	valid := validUUIDs(ids)
	if len(valid) == 0 {
		return []string{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		UPDATE pins SET status = $2, is_public = $3 WHERE id = ANY($1::uuid[])
		RETURNING id::text
	`, valid, string(status), isPublic)
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	updated, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	return updated, nil
}
