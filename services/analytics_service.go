package services

import (
	"fest-event-system/models"
	"fest-event-system/utils"

	"gorm.io/gorm"
)

type AnalyticsService struct {
	DB *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{DB: db}
}

type SubEventStats struct {
	SubEventID      string  `json:"sub_event_id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	Capacity        int     `json:"capacity"`
	RegisteredCount int     `json:"registered_count"`
	ApprovedCount   int     `json:"approved_count"`
	FillRate        float64 `json:"fill_rate"`
}

type Overview struct {
	Participants   map[string]int64 `json:"participants"`
	Availability   map[string]int64 `json:"availability"`
	TotalRevenue   float64          `json:"total_revenue"`
	PendingRevenue float64          `json:"pending_revenue"`
	RevenueLabel   string           `json:"revenue_label"`
	SubEvents      []SubEventStats  `json:"sub_events"`
	OpenQueries    int64            `json:"open_queries"`
	PendingUsers   int64            `json:"pending_users"`
	ActiveRounds   int64            `json:"active_rounds"`
}

type countRow struct {
	Bucket string
	Total  int64
}

func groupCount(db *gorm.DB, model interface{}, column string) (map[string]int64, error) {
	var rows []countRow
	if err := db.Model(model).Select(column + " AS bucket, COUNT(*) AS total").Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Bucket] = r.Total
	}
	return out, nil
}

// Overview summarises registrations, revenue and progress for the admin dashboard.
func (s *AnalyticsService) Overview() (*Overview, error) {
	var ov Overview
	var err error

	if ov.Participants, err = groupCount(s.DB, &models.Participant{}, "status"); err != nil {
		return nil, dbErr(err, "failed to count participants")
	}
	if ov.Availability, err = groupCount(s.DB, &models.Participant{}, "availability"); err != nil {
		return nil, dbErr(err, "failed to count availability")
	}

	var revenue struct {
		Approved float64
		Pending  float64
	}
	if err := s.DB.Model(&models.Participant{}).Select(
		"COALESCE(SUM(CASE WHEN status = ? THEN amount_paid ELSE 0 END), 0) AS approved, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN amount_paid ELSE 0 END), 0) AS pending",
		models.ParticipantApproved, models.ParticipantPending,
	).Scan(&revenue).Error; err != nil {
		return nil, dbErr(err, "failed to sum revenue")
	}
	ov.TotalRevenue = round2(revenue.Approved)
	ov.PendingRevenue = round2(revenue.Pending)
	ov.RevenueLabel = utils.FormatINR(ov.TotalRevenue)

	var events []models.SubEvent
	if err := s.DB.Order("name ASC").Find(&events).Error; err != nil {
		return nil, dbErr(err, "failed to load sub-events")
	}
	for _, se := range events {
		ov.SubEvents = append(ov.SubEvents, SubEventStats{
			SubEventID:      se.ID,
			Name:            se.Name,
			Status:          se.Status,
			Capacity:        se.Capacity,
			RegisteredCount: se.RegisteredCount,
			ApprovedCount:   se.ApprovedCount,
			FillRate:        models.Percentage(float64(se.RegisteredCount), float64(se.Capacity)),
		})
	}

	if err := s.DB.Model(&models.Query{}).Where("status = ?", models.QueryOpen).Count(&ov.OpenQueries).Error; err != nil {
		return nil, dbErr(err, "failed to count queries")
	}
	if err := s.DB.Model(&models.User{}).Where("is_approved = ?", false).Count(&ov.PendingUsers).Error; err != nil {
		return nil, dbErr(err, "failed to count users")
	}
	if err := s.DB.Model(&models.Round{}).Where("status = ?", models.RoundActive).Count(&ov.ActiveRounds).Error; err != nil {
		return nil, dbErr(err, "failed to count rounds")
	}
	return &ov, nil
}
