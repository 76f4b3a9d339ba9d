package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atmx/price-feed/internal/model"
)

// GormStore implements Store on MySQL through gorm. The tables mirror the
// PostgreSQL schema and are created by AutoMigrate.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// MySQLDSN turns a database URL into a go-sql-driver DSN: an optional
// mysql:// scheme is stripped and parseTime=true is ensured.
func MySQLDSN(url string) string {
	dsn := strings.TrimPrefix(url, "mysql://")
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// OpenMySQL opens a gorm handle on url.
func OpenMySQL(url string, maxConns int) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(MySQLDSN(url)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if maxConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(maxConns)
	}
	return db, nil
}

// Migrate creates or updates the tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&itemRow{}, &priceRow{})
}

func (s *GormStore) UpsertItems(ctx context.Context, items []model.Item) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]itemRow, len(items))
	for i, it := range items {
		rows[i] = rowFromItem(it)
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
}

func (s *GormStore) ListItems(ctx context.Context) ([]model.Item, error) {
	var rows []itemRow
	if err := s.db.WithContext(ctx).Order("name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]model.Item, len(rows))
	for i, r := range rows {
		items[i] = r.item()
	}
	return items, nil
}

func (s *GormStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var r itemRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card %s: %w", id, err)
	}
	it := r.item()
	return &it, nil
}

func (s *GormStore) InsertPricePoints(ctx context.Context, points []model.PricePoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}
	rows := make([]priceRow, len(points))
	for i, p := range points {
		rows[i] = rowFromPoint(p)
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, DefaultPageSize)
	return res.RowsAffected, res.Error
}

func (s *GormStore) LatestPrices(ctx context.Context, limit int) ([]model.PricePoint, error) {
	var rows []priceRow
	err := s.db.WithContext(ctx).
		Order("ts IS NULL, ts DESC, seq").
		Limit(pageLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return pointsFromRows(rows), nil
}

func (s *GormStore) BulkPrices(ctx context.Context, q BulkQuery) (Page, error) {
	limit := pageLimit(q.Limit)
	tx := s.db.WithContext(ctx).Where("seq > ?", q.After)
	if !q.Start.IsZero() {
		tx = tx.Where("ts >= ?", q.Start.UTC())
	}
	if !q.End.IsZero() {
		tx = tx.Where("ts < ?", q.End.UTC())
	}

	var rows []priceRow
	if err := tx.Order("seq").Limit(limit).Find(&rows).Error; err != nil {
		return Page{}, err
	}

	page := Page{Points: pointsFromRows(rows), Next: q.After, Done: len(rows) < limit}
	if len(rows) > 0 {
		page.Next = rows[len(rows)-1].Seq
	}
	return page, nil
}

func (s *GormStore) CardHistory(ctx context.Context, cardID string, since time.Time) ([]model.PricePoint, error) {
	var rows []priceRow
	err := s.db.WithContext(ctx).
		Where("card_id = ? AND ts >= ?", cardID, since.UTC()).
		Order("ts, seq").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return pointsFromRows(rows), nil
}

func (s *GormStore) Stats(ctx context.Context) (*model.Stats, error) {
	var agg struct {
		Total     int64
		Corrupted int64
		First     *time.Time
		Last      *time.Time
	}
	err := s.db.WithContext(ctx).Model(&priceRow{}).
		Select("COUNT(*) AS total, COALESCE(SUM(is_corrupted), 0) AS corrupted, MIN(ts) AS first, MAX(ts) AS last").
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("price stats: %w", err)
	}

	var cards int64
	if err := s.db.WithContext(ctx).Model(&itemRow{}).Count(&cards).Error; err != nil {
		return nil, fmt.Errorf("card count: %w", err)
	}

	return &model.Stats{
		TotalPrices:      agg.Total,
		TotalCards:       cards,
		CorruptedRecords: agg.Corrupted,
		CorruptionRate:   corruptionRate(agg.Corrupted, agg.Total),
		DateRange:        model.DateRange{Start: agg.First, End: agg.Last},
	}, nil
}

func pointsFromRows(rows []priceRow) []model.PricePoint {
	points := make([]model.PricePoint, len(rows))
	for i, r := range rows {
		points[i] = r.point()
	}
	return points
}
