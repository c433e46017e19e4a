package cities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const cityFilter = `
	WHERE ($1::text = '' OR name = $1::text)
	  AND ($2::text = '' OR name ILIKE '%' || $2::text || '%' OR description ILIKE '%' || $2::text || '%')
`

func (r *Repository) ListCities(ctx context.Context, query ListQuery) ([]City, PaginationMetadata, error) {
	name := strings.TrimSpace(query.Name)
	search := strings.TrimSpace(query.SearchQuery)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cities`+cityFilter, name, search).Scan(&total); err != nil {
		return nil, PaginationMetadata{}, fmt.Errorf("count cities: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, '')
		FROM cities`+cityFilter+`
		ORDER BY name ASC
		LIMIT $3 OFFSET $4
	`, name, search, query.PageSize, query.offset())
	if err != nil {
		return nil, PaginationMetadata{}, fmt.Errorf("query cities: %w", err)
	}
	defer rows.Close()

	result := make([]City, 0)
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, PaginationMetadata{}, fmt.Errorf("scan city: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, PaginationMetadata{}, fmt.Errorf("iterate cities: %w", err)
	}

	return result, NewPaginationMetadata(total, query.PageSize, query.PageNumber), nil
}

func (r *Repository) GetCity(ctx context.Context, cityID int64) (City, error) {
	var c City
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, '')
		FROM cities
		WHERE id = $1
	`, cityID).Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return City{}, ErrNotFound
		}
		return City{}, fmt.Errorf("query city: %w", err)
	}

	return c, nil
}

func (r *Repository) CityExists(ctx context.Context, cityID int64) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM cities WHERE id = $1)`, cityID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check city exists: %w", err)
	}
	return exists, nil
}

func (r *Repository) ListPointsOfInterest(ctx context.Context, cityID int64) ([]PointOfInterest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, city_id, name, COALESCE(description, '')
		FROM points_of_interest
		WHERE city_id = $1
		ORDER BY id ASC
	`, cityID)
	if err != nil {
		return nil, fmt.Errorf("query points of interest: %w", err)
	}
	defer rows.Close()

	result := make([]PointOfInterest, 0)
	for rows.Next() {
		var p PointOfInterest
		if err := rows.Scan(&p.ID, &p.CityID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("scan point of interest: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate points of interest: %w", err)
	}

	return result, nil
}

func (r *Repository) GetPointOfInterest(ctx context.Context, cityID, poiID int64) (PointOfInterest, error) {
	var p PointOfInterest
	err := r.db.QueryRowContext(ctx, `
		SELECT id, city_id, name, COALESCE(description, '')
		FROM points_of_interest
		WHERE city_id = $1 AND id = $2
	`, cityID, poiID).Scan(&p.ID, &p.CityID, &p.Name, &p.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PointOfInterest{}, ErrNotFound
		}
		return PointOfInterest{}, fmt.Errorf("query point of interest: %w", err)
	}

	return p, nil
}

func (r *Repository) CreatePointOfInterest(ctx context.Context, cityID int64, input PointOfInterestInput) (PointOfInterest, error) {
	p := PointOfInterest{CityID: cityID, Name: input.Name, Description: input.Description}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO points_of_interest (city_id, name, description)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id
	`, cityID, input.Name, input.Description).Scan(&p.ID)
	if err != nil {
		return PointOfInterest{}, fmt.Errorf("insert point of interest: %w", err)
	}

	return p, nil
}

func (r *Repository) UpdatePointOfInterest(ctx context.Context, cityID, poiID int64, input PointOfInterestInput) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE points_of_interest
		SET name = $3, description = NULLIF($4, '')
		WHERE city_id = $1 AND id = $2
	`, cityID, poiID, input.Name, input.Description)
	if err != nil {
		return fmt.Errorf("update point of interest: %w", err)
	}

	return expectOneRow(res)
}

func (r *Repository) DeletePointOfInterest(ctx context.Context, cityID, poiID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM points_of_interest WHERE city_id = $1 AND id = $2`, cityID, poiID)
	if err != nil {
		return fmt.Errorf("delete point of interest: %w", err)
	}

	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
