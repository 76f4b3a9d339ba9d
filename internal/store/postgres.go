package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/price-feed/internal/model"
)

// PostgresSchema creates the tables used by PostgresStore. Prices are NUMERIC
// for exact decimal precision; seq gives keyset paging in insertion order.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS cards (
	id          TEXT PRIMARY KEY,
	oracle_id   TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	rarity      TEXT NOT NULL,
	set_code    TEXT NOT NULL DEFAULT '',
	set_name    TEXT NOT NULL DEFAULT '',
	base_price  NUMERIC NOT NULL,
	volatility  DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS prices (
	seq          BIGSERIAL PRIMARY KEY,
	id           TEXT NOT NULL UNIQUE,
	card_id      TEXT,
	oracle_id    TEXT,
	card_name    TEXT,
	source       TEXT,
	price        NUMERIC,
	currency     TEXT NOT NULL DEFAULT 'USD',
	ts           TIMESTAMPTZ,
	volume       INTEGER,
	is_corrupted BOOLEAN NOT NULL DEFAULT FALSE,
	corruption   TEXT
);

CREATE INDEX IF NOT EXISTS idx_prices_ts ON prices (ts);
CREATE INDEX IF NOT EXISTS idx_prices_card_ts ON prices (card_id, ts);
`

const priceColumns = `seq, id, card_id, oracle_id, card_name, source, price::TEXT,
	currency, ts, volume, is_corrupted, corruption`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// PoolConfig parses url and applies the connection cap.
func PoolConfig(url string, maxConns int) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	return cfg, nil
}

// NewPool connects to PostgreSQL and verifies the connection.
func NewPool(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(url, maxConns)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, PostgresSchema)
	return err
}

func (s *PostgresStore) UpsertItems(ctx context.Context, items []model.Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		r := rowFromItem(it)
		batch.Queue(`
			INSERT INTO cards (id, oracle_id, name, rarity, set_code, set_name, base_price, volatility)
			VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8)
			ON CONFLICT (id) DO UPDATE SET
				oracle_id = EXCLUDED.oracle_id, name = EXCLUDED.name, rarity = EXCLUDED.rarity,
				set_code = EXCLUDED.set_code, set_name = EXCLUDED.set_name,
				base_price = EXCLUDED.base_price, volatility = EXCLUDED.volatility
		`, r.ID, r.OracleID, r.Name, r.Rarity, r.SetCode, r.SetName, r.BasePrice, r.Volatility)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert card: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListItems(ctx context.Context) ([]model.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, oracle_id, name, rarity, set_code, set_name, base_price::TEXT, volatility
		 FROM cards ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var r itemRow
		if err := rows.Scan(&r.ID, &r.OracleID, &r.Name, &r.Rarity,
			&r.SetCode, &r.SetName, &r.BasePrice, &r.Volatility); err != nil {
			return nil, err
		}
		items = append(items, r.item())
	}
	return items, rows.Err()
}

func (s *PostgresStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var r itemRow
	err := s.pool.QueryRow(ctx,
		`SELECT id, oracle_id, name, rarity, set_code, set_name, base_price::TEXT, volatility
		 FROM cards WHERE id = $1`, id).
		Scan(&r.ID, &r.OracleID, &r.Name, &r.Rarity,
			&r.SetCode, &r.SetName, &r.BasePrice, &r.Volatility)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card %s: %w", id, err)
	}
	it := r.item()
	return &it, nil
}

// InsertPricePoints inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (s *PostgresStore) InsertPricePoints(ctx context.Context, points []model.PricePoint) (int64, error) {
	batch := &pgx.Batch{}
	for _, p := range points {
		r := rowFromPoint(p)
		batch.Queue(`
			INSERT INTO prices (id, card_id, oracle_id, card_name, source, price, currency, ts, volume, is_corrupted, corruption)
			VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.CardID, r.OracleID, r.CardName, r.Source, r.Price, r.Currency,
			r.Timestamp, r.Volume, r.IsCorrupted, r.Corruption)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range points {
		ct, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert price: %w", err)
		}
		inserted += ct.RowsAffected()
	}
	return inserted, nil
}

func (s *PostgresStore) LatestPrices(ctx context.Context, limit int) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+priceColumns+`
		 FROM prices ORDER BY ts DESC NULLS LAST, seq LIMIT $1`, pageLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func (s *PostgresStore) BulkPrices(ctx context.Context, q BulkQuery) (Page, error) {
	limit := pageLimit(q.Limit)
	rows, err := s.pool.Query(ctx,
		`SELECT `+priceColumns+`
		 FROM prices
		 WHERE seq > $1
		   AND ($2::TIMESTAMPTZ IS NULL OR ts >= $2)
		   AND ($3::TIMESTAMPTZ IS NULL OR ts < $3)
		 ORDER BY seq LIMIT $4`,
		q.After, nullTime(q.Start), nullTime(q.End), limit)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	points, last, err := scanPriceRows(rows)
	if err != nil {
		return Page{}, err
	}
	page := Page{Points: points, Next: q.After, Done: len(points) < limit}
	if last > 0 {
		page.Next = last
	}
	return page, nil
}

func (s *PostgresStore) CardHistory(ctx context.Context, cardID string, since time.Time) ([]model.PricePoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+priceColumns+`
		 FROM prices WHERE card_id = $1 AND ts >= $2 ORDER BY ts, seq`, cardID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE is_corrupted),
		        MIN(ts), MAX(ts),
		        (SELECT COUNT(*) FROM cards)
		 FROM prices`).
		Scan(&st.TotalPrices, &st.CorruptedRecords,
			&st.DateRange.Start, &st.DateRange.End, &st.TotalCards)
	if err != nil {
		return nil, fmt.Errorf("price stats: %w", err)
	}
	st.CorruptionRate = corruptionRate(st.CorruptedRecords, st.TotalPrices)
	return &st, nil
}

// pgxRows is the subset of pgx.Rows the scanners need.
type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPricePoints(rows pgxRows) ([]model.PricePoint, error) {
	points, _, err := scanPriceRows(rows)
	return points, err
}

// scanPriceRows reads rows selected with priceColumns and returns the last
// sequence number seen.
func scanPriceRows(rows pgxRows) ([]model.PricePoint, int64, error) {
	var points []model.PricePoint
	var last int64
	for rows.Next() {
		var r priceRow
		if err := rows.Scan(&r.Seq, &r.ID, &r.CardID, &r.OracleID, &r.CardName, &r.Source,
			&r.Price, &r.Currency, &r.Timestamp, &r.Volume, &r.IsCorrupted, &r.Corruption); err != nil {
			return nil, 0, err
		}
		points = append(points, r.point())
		last = r.Seq
	}
	return points, last, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
