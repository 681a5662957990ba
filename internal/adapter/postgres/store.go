// Package postgres persists candidates, districts, rallies and traffic
// predictions with GORM.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Options tunes the connection pool and SQL logging.
type Options struct {
	MaxOpenConns  int
	SlowThreshold time.Duration
}

// Store implements pipeline.Store on PostgreSQL.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects, verifies the connection and migrates the schema.
func Open(ctx context.Context, dsn string, opts Options, logger *slog.Logger) (*Store, error) {
	lg := gormlogger.New(
		slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             opts.SlowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: lg})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Info("connected to database")
	return s, nil
}

// Migrate creates or updates the four tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&candidateRow{}, &districtRow{}, &rallyRow{}, &predictionRow{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) FindCandidateByName(ctx context.Context, name string) (domain.Candidate, error) {
	var row candidateRow
	err := s.db.WithContext(ctx).Where("name = ?", name).Order("created_at, id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Candidate{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("find candidate: %w", err)
	}
	return domain.Candidate{ID: row.ID, Name: row.Name, Party: row.Party}, nil
}

func (s *Store) CreateCandidate(ctx context.Context, c domain.Candidate) (domain.Candidate, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	row := candidateRow{ID: c.ID, Name: c.Name, Party: c.Party}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Candidate{}, fmt.Errorf("create candidate: %w", err)
	}
	return c, nil
}

func (s *Store) FindDistrictByName(ctx context.Context, name string) (domain.District, error) {
	var row districtRow
	err := s.db.WithContext(ctx).Where("name = ?", name).Order("created_at, id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.District{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.District{}, fmt.Errorf("find district: %w", err)
	}
	return domain.District{ID: row.ID, Name: row.Name, Region: row.Region}, nil
}

func (s *Store) CreateDistrict(ctx context.Context, d domain.District) (domain.District, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := districtRow{ID: d.ID, Name: d.Name, Region: d.Region}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.District{}, fmt.Errorf("create district: %w", err)
	}
	return d, nil
}

// UpsertRally inserts or updates on (title, start_time) and returns the stored ID.
func (s *Store) UpsertRally(ctx context.Context, r domain.Rally) (domain.Rally, error) {
	row := toRallyRow(r)
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}

	err := s.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "title"}, {Name: "start_time"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"candidate_id", "district_id", "venue_name", "description",
				"end_time", "location_lat", "location_lon", "source_url", "updated_at",
			}),
		},
		clause.Returning{Columns: []clause.Column{{Name: "id"}}},
	).Create(&row).Error
	if err != nil {
		return domain.Rally{}, fmt.Errorf("upsert rally: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) UpcomingRallies(ctx context.Context, from, to time.Time) ([]domain.Rally, error) {
	var rows []rallyRow
	err := s.db.WithContext(ctx).
		Where("start_time >= ? AND start_time <= ?", from.UTC(), to.UTC()).
		Order("start_time, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list upcoming rallies: %w", err)
	}
	out := make([]domain.Rally, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (s *Store) HasPrediction(ctx context.Context, rallyID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&predictionRow{}).Where("rally_id = ?", rallyID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check prediction: %w", err)
	}
	return n > 0, nil
}

// CreatePrediction inserts p, doing nothing if the rally already has a prediction.
func (s *Store) CreatePrediction(ctx context.Context, p domain.TrafficPrediction) (bool, error) {
	row := toPredictionRow(p)
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "rally_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("create prediction: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Prediction returns the stored prediction for a rally.
func (s *Store) Prediction(ctx context.Context, rallyID uuid.UUID) (domain.TrafficPrediction, error) {
	var row predictionRow
	err := s.db.WithContext(ctx).Where("rally_id = ?", rallyID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TrafficPrediction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TrafficPrediction{}, fmt.Errorf("get prediction: %w", err)
	}
	return row.toDomain(), nil
}

// CountRallies returns the number of stored rallies.
func (s *Store) CountRallies(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&rallyRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count rallies: %w", err)
	}
	return n, nil
}
