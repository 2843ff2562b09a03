// Package catalog provides read-only item lookups for the fulfillment
// pipeline. Items are owned by the catalog subsystem; nothing here mutates
// them.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Item is the slice of a catalog row the pipeline needs: price for checkout,
// asset pointer and title for download links.
type Item struct {
	ID         uuid.UUID
	Title      string
	PriceCents int64
	AssetURL   string
}

// Store reads items from the catalog schema.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "catalog"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) itemsTable() string { return s.schema + ".items" }

// GetByID returns the item, or ok=false when it does not exist.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Item, bool, error) {
	if s.pg == nil || id == uuid.Nil {
		return Item{}, false, nil
	}
	var it Item
	err := s.pg.QueryRow(ctx, `SELECT id, title, price_cents, asset_url FROM `+s.itemsTable()+` WHERE id=$1 LIMIT 1`, id).
		Scan(&it.ID, &it.Title, &it.PriceCents, &it.AssetURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return it, true, nil
}

// GetByIDs returns item_id -> item for the given ids. Missing ids are simply
// absent from the map.
func (s *Store) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Item, error) {
	out := make(map[uuid.UUID]Item, len(ids))
	if len(ids) == 0 || s.pg == nil {
		return out, nil
	}
	rows, err := s.pg.Query(ctx, `SELECT id, title, price_cents, asset_url FROM `+s.itemsTable()+` WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Title, &it.PriceCents, &it.AssetURL); err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}
