package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"labsched/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var errRowNotFound = errors.New("reservation row not found")

const scheduleSheet = "Schedule"

// SheetsService mirrors the reservation schedule into a Google spreadsheet.
// Row positions are cached per reservation id to avoid a full column scan
// on every status update.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	service := &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
	}

	// Warm up cache in background
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		service.WarmUpCache(ctx)
	}()

	return service, nil
}

// TestConnection reads the first cell of the schedule sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, scheduleSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetServiceAccountEmail returns the service account email from a credentials file.
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// WarmUpCache populates the row index cache by reading the entire ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, scheduleSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		var id int64
		switch v := row[0].(type) {
		case float64:
			id = int64(v)
		case string:
			fmt.Sscanf(v, "%d", &id)
		}
		if id > 0 {
			s.rowCache[id] = i + 1
		}
	}
	return nil
}

func reservationRowValues(r *models.Reservation) []interface{} {
	return []interface{}{
		r.ID,
		r.InstructorID,
		r.LabID,
		r.CourseID,
		r.Section,
		r.StartTime.Format("2006-01-02 15:04"),
		r.EndTime.Format("2006-01-02 15:04"),
		r.Status,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
		r.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// AppendReservation appends a reservation row to the schedule sheet.
func (s *SheetsService) AppendReservation(ctx context.Context, reservation *models.Reservation) error {
	if reservation == nil {
		return fmt.Errorf("reservation is nil")
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{reservationRowValues(reservation)},
	}

	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, scheduleSheet+"!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpdateReservationStatus updates the status cell for an existing reservation
// row, appending is the caller's responsibility when it is missing.
func (s *SheetsService) UpdateReservationStatus(ctx context.Context, reservationID int64, status string) error {
	rowIdx, err := s.FindReservationRow(ctx, reservationID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!H%d:H%d", scheduleSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{status}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// ReplaceScheduleSheet clears and rewrites the whole schedule sheet.
func (s *SheetsService) ReplaceScheduleSheet(ctx context.Context, reservations []*models.Reservation, labs []*models.Lab) error {
	labNames := make(map[int64]string, len(labs))
	for _, lab := range labs {
		labNames[lab.ID] = lab.Name
	}

	values := [][]interface{}{
		{"ID", "Instructor", "Lab", "Course", "Section", "Start", "End", "Status", "Created", "Updated"},
	}
	for _, r := range reservations {
		row := reservationRowValues(r)
		if name, ok := labNames[r.LabID]; ok {
			row[2] = name
		}
		values = append(values, row)
	}

	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, scheduleSheet+"!A:J", &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return err
	}

	rangeData := fmt.Sprintf("%s!A1:J%d", scheduleSheet, len(values))
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err == nil {
		s.ClearCache()
	}
	return err
}

// FindReservationRow resolves the 1-based sheet row for a reservation id.
func (s *SheetsService) FindReservationRow(ctx context.Context, reservationID int64) (int, error) {
	if reservationID == 0 {
		return 0, fmt.Errorf("reservation id is required")
	}

	if row, ok := s.getCachedRow(reservationID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, scheduleSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		switch v := row[0].(type) {
		case float64:
			if int64(v) == reservationID {
				rowIdx := i + 1 // Values are zero-based; sheet rows are 1-based
				s.setCachedRow(reservationID, rowIdx)
				return rowIdx, nil
			}
		case string:
			if v == fmt.Sprintf("%d", reservationID) {
				rowIdx := i + 1
				s.setCachedRow(reservationID, rowIdx)
				return rowIdx, nil
			}
		}
	}

	return 0, errRowNotFound
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

// ClearCache clears the row index cache.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

// IsRowNotFound reports whether err means the reservation has no sheet row yet.
func IsRowNotFound(err error) bool {
	return errors.Is(err, errRowNotFound)
}
