package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"crs-prediction-api/config"
	"crs-prediction-api/models"
	"crs-prediction-api/stats"
)

const dbSource = "IRCC Express Entry Rounds (database)"

// drawOrder matches stats.RecentFirst: newest date, then the highest round
// number compared by length before text.
const drawOrder = "draw_date DESC, LENGTH(draw_number) DESC, draw_number DESC"

// GormStore reads the official data from SQL tables. The ingester fetch
// writes crs_draws; `crs-ingester seed` fills the pool and target tables.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tables the store reads.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Draw{},
		&models.PoolSnapshot{},
		&models.PoolBand{},
		&models.ImmigrationTarget{},
	)
}

// Open returns the Loader selected by cfg.Driver and a close function.
func Open(cfg config.DatabaseConfig) (Loader, func(), error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverFile:
		return NewFileStore(cfg.DataDir), func() {}, nil
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.GetDSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("get sql db handle: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.AutoMigrate || cfg.Driver == config.DriverSQLite {
		if err := Migrate(db); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return NewGormStore(db), func() { sqlDB.Close() }, nil
}

func (s *GormStore) LoadOfficialData(ctx context.Context) (*models.OfficialData, error) {
	db := s.db.WithContext(ctx)

	var draws []models.Draw
	if err := db.Order(drawOrder).Find(&draws).Error; err != nil {
		return nil, unavailable("query draws: %v", err)
	}
	if len(draws) == 0 {
		return nil, unavailable("no draws recorded")
	}

	pool, err := s.latestPool(ctx)
	if err != nil {
		return nil, unavailable("query pool: %v", err)
	}

	var targets []models.ImmigrationTarget
	if err := db.Order("year").Find(&targets).Error; err != nil {
		return nil, unavailable("query targets: %v", err)
	}
	if len(targets) == 0 {
		targets = DefaultTargets()
	}

	updated := draws[0].CreatedAt
	for _, d := range draws {
		if d.CreatedAt.After(updated) {
			updated = d.CreatedAt
		}
	}

	return &models.OfficialData{
		Draws:     draws,
		Pool:      pool,
		Targets:   targets,
		Source:    dbSource,
		UpdatedAt: updated,
	}, nil
}

func (s *GormStore) latestPool(ctx context.Context) (models.PoolDistribution, error) {
	db := s.db.WithContext(ctx)

	var snap models.PoolSnapshot
	err := db.Order("year DESC").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return latestPool(nil), nil
	}
	if err != nil {
		return models.PoolDistribution{}, err
	}

	var bands []models.PoolBand
	if err := db.Where("year = ?", snap.Year).Find(&bands).Error; err != nil {
		return models.PoolDistribution{}, err
	}
	pool := models.PoolDistribution{
		Year:         snap.Year,
		TotalPool:    snap.TotalPool,
		AvgScore:     snap.AvgScore,
		Distribution: make(map[string]int, len(bands)),
		UpdatedAt:    snap.UpdatedAt,
	}
	for _, b := range bands {
		pool.Distribution[b.Band] = b.Candidates
	}
	return pool, nil
}

func (s *GormStore) QueryDraws(ctx context.Context, q DrawQuery) ([]models.Draw, error) {
	query := s.db.WithContext(ctx).Model(&models.Draw{}).Order(drawOrder)
	if c := q.Before; c != nil {
		n := len(c.Number)
		query = query.Where(
			"draw_date < ? OR (draw_date = ? AND (LENGTH(draw_number) < ? OR (LENGTH(draw_number) = ? AND draw_number < ?)))",
			c.Date, c.Date, n, n, c.Number)
	}
	// Stored names are the raw IRCC labels, so category filtering happens
	// after normalization rather than in SQL.
	if q.Limit > 0 && q.Category == "" {
		query = query.Limit(q.Limit)
	}
	var rows []models.Draw
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query draws: %w", err)
	}
	if q.Category == "" {
		return rows, nil
	}
	out := rows[:0]
	for _, d := range rows {
		if stats.NormalizeCategory(d.Category) != q.Category {
			continue
		}
		out = append(out, d)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// SaveDraws inserts draws, skipping any whose draw number already exists.
func (s *GormStore) SaveDraws(ctx context.Context, draws []models.Draw) (int, error) {
	if len(draws) == 0 {
		return 0, nil
	}
	rows := make([]models.Draw, len(draws))
	copy(rows, draws)
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "draw_number"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("insert draws: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// SavePool replaces the snapshot and bands for pool.Year.
func (s *GormStore) SavePool(ctx context.Context, pool models.PoolDistribution) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap := models.PoolSnapshot{
			Year:      pool.Year,
			TotalPool: pool.TotalPool,
			AvgScore:  pool.AvgScore,
			UpdatedAt: pool.UpdatedAt,
		}
		if err := tx.Save(&snap).Error; err != nil {
			return err
		}
		if err := tx.Where("year = ?", pool.Year).Delete(&models.PoolBand{}).Error; err != nil {
			return err
		}
		for _, band := range pool.Bands() {
			row := models.PoolBand{Year: pool.Year, Band: band, Candidates: pool.Distribution[band]}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) SaveTargets(ctx context.Context, targets []models.ImmigrationTarget) error {
	if len(targets) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(&targets).Error
}
