// Package catalog reads and writes place records in the destination
// Postgres/PostGIS database.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/place-import/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the catalog.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// Catalog implements record lookup and insert.
type Catalog struct {
	pool    Pool
	closeFn func()
	now     func() time.Time
}

// New wraps an existing pool.
func New(pool Pool) *Catalog {
	return &Catalog{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// NewPostgres connects a pgx pool and wraps it.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*Catalog, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "catalog: ping")
	}

	c := New(pool)
	c.closeFn = pool.Close
	return c, nil
}

// Close releases the pool when the catalog owns it.
func (c *Catalog) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

const migration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS places (
	id             TEXT PRIMARY KEY,
	place_id       TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	address        TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	neighborhood   TEXT NOT NULL DEFAULT '',
	location       geometry(Point, 4326),
	category       TEXT NOT NULL DEFAULT '',
	sub_categories JSONB NOT NULL DEFAULT '[]',
	description    TEXT NOT NULL DEFAULT '',
	handle         TEXT NOT NULL DEFAULT '',
	photo_urls     JSONB NOT NULL DEFAULT '[]',
	website        TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	hours          JSONB NOT NULL DEFAULT '[]',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_places_location ON places USING GIST (location);
CREATE INDEX IF NOT EXISTS idx_places_city ON places(city);
`

// Migrate creates the places table if it does not exist.
func (c *Catalog) Migrate(ctx context.Context) error {
	if _, err := c.pool.Exec(ctx, migration); err != nil {
		return eris.Wrap(err, "catalog: migrate")
	}
	return nil
}

const findByPlaceIDSQL = `SELECT id FROM places WHERE place_id = $1`

// FindByPlaceID returns the record ID stored for placeID. ok is false when
// no record exists.
func (c *Catalog) FindByPlaceID(ctx context.Context, placeID string) (string, bool, error) {
	var id string
	err := c.pool.QueryRow(ctx, findByPlaceIDSQL, placeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "catalog: find place %s", placeID)
	}
	return id, true, nil
}

// insertSQL is idempotent on place_id: a repeated insert returns the ID of
// the row already stored.
const insertSQL = `INSERT INTO places (
	id, place_id, name, address, city, neighborhood, location,
	category, sub_categories, description, handle, photo_urls,
	website, phone, hours, created_at
) VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromEWKB($7), $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (place_id) DO UPDATE SET place_id = EXCLUDED.place_id
RETURNING id`

// Insert stores rec and returns its record ID. A missing ID is generated.
func (c *Catalog) Insert(ctx context.Context, rec *model.CatalogRecord) (string, error) {
	if rec.PlaceID == "" {
		return "", eris.New("catalog: record has no place id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now()
	}

	location, err := encodePoint(rec.Latitude, rec.Longitude)
	if err != nil {
		return "", err
	}
	subCategories, _ := json.Marshal(nonNil(rec.SubCategories))
	photoURLs, _ := json.Marshal(nonNil(rec.PhotoURLs))
	hours, _ := json.Marshal(nonNil(rec.Hours))

	var id string
	err = c.pool.QueryRow(ctx, insertSQL,
		rec.ID, rec.PlaceID, rec.Name, rec.Address, rec.City, rec.Neighborhood, location,
		rec.Category, subCategories, rec.Description, rec.Handle, photoURLs,
		rec.Website, rec.Phone, hours, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "catalog: insert place %s", rec.PlaceID)
	}
	return id, nil
}

// encodePoint renders lat/lng as an EWKB point with SRID 4326. A point at
// 0,0 is treated as missing.
func encodePoint(lat, lng float64) ([]byte, error) {
	if lat == 0 && lng == 0 {
		return nil, nil
	}
	p := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: encode location")
	}
	return data, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
