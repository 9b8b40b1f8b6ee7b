package reports

import (
	"context"
	"sort"
	"time"

	"labsched/internal/domain"
	"labsched/internal/models"

	"github.com/rs/zerolog"
)

// openHoursPerDay is the assumed bookable window per lab per day, used to
// express approved hours as a utilization rate.
const openHoursPerDay = 8.0

// LabUsage aggregates reservation activity for one lab in a window.
type LabUsage struct {
	LabID         int64   `json:"lab_id"`
	LabName       string  `json:"lab_name"`
	Reservations  int     `json:"reservations"`
	ApprovedHours float64 `json:"approved_hours"`
	PendingCount  int     `json:"pending_count"`
	Utilization   float64 `json:"utilization"`
	BusiestDay    string  `json:"busiest_day,omitempty"`
}

// InstructorUsage aggregates reservation activity for one instructor.
type InstructorUsage struct {
	InstructorID int64   `json:"instructor_id"`
	FullName     string  `json:"full_name"`
	Reservations int     `json:"reservations"`
	BookedHours  float64 `json:"booked_hours"`
}

// UsageReport is the windowed usage summary across labs and instructors.
type UsageReport struct {
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	Labs        []LabUsage        `json:"labs"`
	Instructors []InstructorUsage `json:"instructors"`
}

type Service struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewService(repo domain.Repository, logger *zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// BuildUsageReport aggregates reservations intersecting [from, to) by lab
// and by instructor. Declined and cancelled reservations do not count
// towards hours.
func (s *Service) BuildUsageReport(ctx context.Context, from, to time.Time) (*UsageReport, error) {
	reservations, err := s.repo.GetReservationsByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	labs, err := s.repo.GetActiveLabs(ctx)
	if err != nil {
		return nil, err
	}
	labNames := make(map[int64]string, len(labs))
	for _, lab := range labs {
		labNames[lab.ID] = lab.Name
	}

	byLab := make(map[int64]*LabUsage)
	byInstructor := make(map[int64]*InstructorUsage)
	dayHours := make(map[int64]map[string]float64)

	for _, r := range reservations {
		lab, ok := byLab[r.LabID]
		if !ok {
			lab = &LabUsage{LabID: r.LabID, LabName: labNames[r.LabID]}
			byLab[r.LabID] = lab
			dayHours[r.LabID] = make(map[string]float64)
		}
		lab.Reservations++

		hours := r.EndTime.Sub(r.StartTime).Hours()
		switch r.Status {
		case models.StatusApproved:
			lab.ApprovedHours += hours
			dayHours[r.LabID][r.StartTime.UTC().Format("2006-01-02")] += hours
		case models.StatusPending:
			lab.PendingCount++
		}

		if models.TerminalStatus(r.Status) {
			continue
		}
		instr, ok := byInstructor[r.InstructorID]
		if !ok {
			name := ""
			if u, err := s.repo.GetUserByID(ctx, r.InstructorID); err == nil {
				name = u.FullName
			}
			instr = &InstructorUsage{InstructorID: r.InstructorID, FullName: name}
			byInstructor[r.InstructorID] = instr
		}
		instr.Reservations++
		instr.BookedHours += hours
	}

	openHours := openHoursPerDay * to.Sub(from).Hours() / 24
	report := &UsageReport{From: from, To: to}
	for _, lab := range byLab {
		if openHours > 0 {
			lab.Utilization = lab.ApprovedHours / openHours
		}
		var best float64
		for day, h := range dayHours[lab.LabID] {
			if h > best || (h == best && (lab.BusiestDay == "" || day < lab.BusiestDay)) {
				best = h
				lab.BusiestDay = day
			}
		}
		report.Labs = append(report.Labs, *lab)
	}
	for _, instr := range byInstructor {
		report.Instructors = append(report.Instructors, *instr)
	}

	sort.Slice(report.Labs, func(i, j int) bool { return report.Labs[i].LabID < report.Labs[j].LabID })
	sort.Slice(report.Instructors, func(i, j int) bool {
		return report.Instructors[i].InstructorID < report.Instructors[j].InstructorID
	})

	return report, nil
}
