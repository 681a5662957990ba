package postgres

import (
	"time"

	"github.com/couchcryptid/rally-traffic-etl/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Candidate and district names carry a plain index, not a unique one:
// concurrent first sightings may insert twice and reads return the oldest row.

type candidateRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;index"`
	Party     string    `gorm:"not null"`
	CreatedAt time.Time
}

func (candidateRow) TableName() string { return "candidates" }

type districtRow struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;index"`
	Region    string    `gorm:"not null"`
	CreatedAt time.Time
}

func (districtRow) TableName() string { return "districts" }

type location struct {
	Lat float64 `gorm:"not null"`
	Lon float64 `gorm:"not null"`
}

type rallyRow struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"not null;uniqueIndex:idx_rallies_title_start"`
	CandidateID uuid.UUID `gorm:"type:uuid;index"`
	DistrictID  uuid.UUID `gorm:"type:uuid;index"`
	VenueName   string
	Description string
	StartTime   time.Time `gorm:"not null;uniqueIndex:idx_rallies_title_start;index"`
	EndTime     time.Time `gorm:"not null"`
	Location    location  `gorm:"embedded;embeddedPrefix:location_"`
	SourceURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (rallyRow) TableName() string { return "rallies" }

type predictionRow struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	RallyID               uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	PredictedDelayMinutes int       `gorm:"not null"`
	JamLevel              string    `gorm:"not null"`
	Description           string
	AffectedRoads         pq.StringArray `gorm:"type:text[]"`
	CreatedAt             time.Time
}

func (predictionRow) TableName() string { return "traffic_predictions" }

func toRallyRow(r domain.Rally) rallyRow {
	return rallyRow{
		ID:          r.ID,
		Title:       r.Title,
		CandidateID: r.CandidateID,
		DistrictID:  r.DistrictID,
		VenueName:   r.VenueName,
		Description: r.Description,
		StartTime:   r.StartTime.UTC(),
		EndTime:     r.EndTime.UTC(),
		Location:    location{Lat: r.Location.Lat, Lon: r.Location.Lon},
		SourceURL:   r.SourceURL,
	}
}

func (row rallyRow) toDomain() domain.Rally {
	return domain.Rally{
		ID:          row.ID,
		Title:       row.Title,
		CandidateID: row.CandidateID,
		DistrictID:  row.DistrictID,
		VenueName:   row.VenueName,
		Description: row.Description,
		StartTime:   row.StartTime.UTC(),
		EndTime:     row.EndTime.UTC(),
		Location:    domain.Coordinate{Lat: row.Location.Lat, Lon: row.Location.Lon},
		SourceURL:   row.SourceURL,
	}
}

func toPredictionRow(p domain.TrafficPrediction) predictionRow {
	return predictionRow{
		ID:                    p.ID,
		RallyID:               p.RallyID,
		PredictedDelayMinutes: p.PredictedDelayMinutes,
		JamLevel:              string(p.JamLevel),
		Description:           p.Description,
		AffectedRoads:         pq.StringArray(p.AffectedRoads),
		CreatedAt:             p.CreatedAt,
	}
}

func (row predictionRow) toDomain() domain.TrafficPrediction {
	return domain.TrafficPrediction{
		ID:                    row.ID,
		RallyID:               row.RallyID,
		PredictedDelayMinutes: row.PredictedDelayMinutes,
		JamLevel:              domain.JamLevel(row.JamLevel),
		Description:           row.Description,
		AffectedRoads:         []string(row.AffectedRoads),
		CreatedAt:             row.CreatedAt,
	}
}
