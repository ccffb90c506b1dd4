package data

import (
	"fmt"

	"clubbackend/internal/logger"
)

// Schedule is one academic term row.
type Schedule struct {
	Name      string `json:"name"`
	StartDate string `json:"start"`
	EndDate   string `json:"end"`
}

// ScheduleRepository reads and seeds the academic calendar.
type ScheduleRepository struct{}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{}
}

// List returns every schedule row in insertion order.
func (r *ScheduleRepository) List() ([]Schedule, error) {
	rows, err := QueryDB(`SELECT name, start_date, end_date FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.Name, &s.StartDate, &s.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// Insert adds one schedule row.
func (r *ScheduleRepository) Insert(s Schedule) error {
	_, err := ExecDB(
		`INSERT INTO schedules (name, start_date, end_date) VALUES (?, ?, ?)`,
		s.Name, s.StartDate, s.EndDate)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

// SeedIfEmpty inserts the initial term calendar when the table has no rows.
func (r *ScheduleRepository) SeedIfEmpty() error {
	var count int
	if err := QueryRowDB(`SELECT COUNT(*) FROM schedules`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count schedules: %w", err)
	}
	if count > 0 {
		return nil
	}

	logger.LogInfo("Seeding initial schedule data")
	initial := []Schedule{
		{Name: "2025-2", StartDate: "2025-09-02", EndDate: "2025-12-20"},
		{Name: "2026-1", StartDate: "2026-03-02", EndDate: "2026-06-19"},
		{Name: "2026-2", StartDate: "2026-09-01", EndDate: "2026-12-21"},
		{Name: "2027-1", StartDate: "2027-03-02", EndDate: "2027-06-18"},
	}
	for _, s := range initial {
		if err := r.Insert(s); err != nil {
			return err
		}
	}
	return nil
}
