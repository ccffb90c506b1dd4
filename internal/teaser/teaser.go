// internal/teaser/teaser.go
package teaser

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"clubbackend/internal/ledger"
	"clubbackend/internal/middleware"
	"clubbackend/internal/store"
)

var header = []string{"신청시각", "이름", "학번", "학과", "전화번호", "동의여부"}

// Entry is one signup row.
type Entry struct {
	EnteredAt  string `json:"신청시각"`
	Name       string `json:"이름"`
	StudentID  string `json:"학번"`
	Department string `json:"학과"`
	Phone      string `json:"전화번호"`
	Agreed     string `json:"동의여부"`
}

// Service appends and lists teaser-event signups in one CSV file.
type Service struct {
	Path string
	Now  func() time.Time
	mu   sync.Mutex
}

func NewService(path string) *Service {
	return &Service{Path: path, Now: time.Now}
}

// Append adds one signup row, writing the header (with a BOM, so the file
// opens cleanly in Excel) when the file does not exist yet.
func (s *Service) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.Path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0664)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer f.Close()

	if isNew {
		if _, err := f.WriteString("\uFEFF"); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(f)
	if isNew {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := writer.Write([]string{
		e.EnteredAt, e.Name, e.StudentID, e.Department, e.Phone, e.Agreed,
	}); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	writer.Flush()
	return writer.Error()
}

// List returns every signup, newest first. Phone numbers that lost their
// leading zero to a spreadsheet edit get it restored.
func (s *Service) List() ([]Entry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	if len(all) <= 1 {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, len(all)-1)
	for _, row := range all[1:] {
		if len(row) < len(header) {
			continue
		}
		phone := row[4]
		if strings.HasPrefix(phone, "10") {
			phone = "0" + phone
		}
		entries = append(entries, Entry{
			EnteredAt:  row[0],
			Name:       row[1],
			StudentID:  row[2],
			Department: row[3],
			Phone:      phone,
			Agreed:     row[5],
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].EnteredAt > entries[j].EnteredAt
	})
	return entries, nil
}

// EntryHandler handles POST /api/teaser/entry.
func (s *Service) EntryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		StudentID  string `json:"student_id"`
		Department string `json:"department"`
		Phone      string `json:"phone"`
		Agreed     bool   `json:"agreed"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.StudentID) == "" ||
		strings.TrimSpace(req.Department) == "" || strings.TrimSpace(req.Phone) == "" ||
		!req.Agreed {
		middleware.WriteFail(w, http.StatusBadRequest, "모든 정보를 입력해주세요.")
		return
	}

	agreed := "N"
	if req.Agreed {
		agreed = "Y"
	}
	entry := Entry{
		EnteredAt:  s.Now().In(ledger.KST).Format(ledger.TimeFormat),
		Name:       store.SanitizeField(req.Name),
		StudentID:  store.SanitizeField(req.StudentID),
		Department: store.SanitizeField(req.Department),
		Phone:      store.SanitizeField(req.Phone),
		Agreed:     agreed,
	}
	if err := s.Append(entry); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{"message": "응모 완료"})
}

// ListHandler handles GET /api/admin/teaser.
func (s *Service) ListHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.List()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{"data": entries})
}
