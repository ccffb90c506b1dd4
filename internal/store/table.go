// internal/store/table.go
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clubbackend/internal/logger"
)

// Loan record status values, as stored and served.
const (
	StatusApplied    = "신청"
	StatusUnreturned = "미반납"
	StatusReturned   = "반납완료"
)

// CategoryDisposable marks items that bypass return tracking.
const CategoryDisposable = "일회용품"

// CategoryDefault is assigned to new stock items without an explicit category.
const CategoryDefault = "반납물품"

// SentinelStock marks an item as uncounted / always available.
const SentinelStock = -1

// StockItem is one row of the inventory table.
type StockItem struct {
	Name     string `json:"물품"`
	Stock    int    `json:"재고현황"`
	Category string `json:"카테고리"`
}

// LoanRecord is one row of the borrow log. ID is an immutable key assigned
// at append time; it survives deletion of earlier rows.
type LoanRecord struct {
	ID         int    `json:"id"`
	Name       string `json:"이름"`
	Phone      string `json:"전화번호"`
	StudentID  string `json:"학번"`
	Department string `json:"학과"`
	Items      string `json:"대여물품"`
	HandlerOut string `json:"대여담당자"`
	BorrowedAt string `json:"대여시각"`
	Status     string `json:"대여현황"`
	HandlerIn  string `json:"반납담당자"`
	ReturnedAt string `json:"반납시각"`
}

// ItemList splits the serialized item list back into request order.
func (r LoanRecord) ItemList() []string {
	if r.Items == "" {
		return nil
	}
	return strings.Split(r.Items, ", ")
}

// JoinItems serializes an item list for storage.
func JoinItems(items []string) string {
	return strings.Join(items, ", ")
}

var stockHeader = []string{"물품", "재고현황", "카테고리"}

var logHeader = []string{
	"id", "이름", "전화번호", "학번", "학과", "대여물품",
	"대여담당자", "대여시각", "대여현황", "반납담당자", "반납시각",
}

// sanitizeCell guards against spreadsheet formula injection: values
// beginning with =, +, - or @ are prefixed with a single quote.
func sanitizeCell(v string) string {
	if strings.HasPrefix(v, "=") || strings.HasPrefix(v, "+") ||
		strings.HasPrefix(v, "-") || strings.HasPrefix(v, "@") {
		return "'" + v
	}
	return v
}

// SanitizeField applies the same guard to request input before it reaches a row.
func SanitizeField(v string) string {
	return sanitizeCell(v)
}

// LoadStock reads the inventory table. A missing file is an empty table.
func LoadStock(path string) ([]StockItem, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return []StockItem{}, nil
	}

	items := make([]StockItem, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		stock, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			// Mirror a spreadsheet edit gone wrong: unparsable counts read as 0.
			stock = 0
		}
		items = append(items, StockItem{Name: row[0], Stock: stock, Category: row[2]})
	}
	return items, nil
}

// SaveStock rewrites the inventory table atomically.
func SaveStock(path string, items []StockItem) error {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			sanitizeCell(it.Name),
			strconv.Itoa(it.Stock),
			sanitizeCell(it.Category),
		})
	}
	return writeTable(path, stockHeader, rows)
}

// LoadLog reads the borrow log. A missing file is an empty table. Legacy
// files written without the id column get sequential ids assigned on load;
// the next save persists them.
func LoadLog(path string) ([]LoanRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []LoanRecord{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(all) == 0 {
		return []LoanRecord{}, nil
	}

	header := all[0]
	hasID := len(header) > 0 && stripBOM(header[0]) == "id"

	records := make([]LoanRecord, 0, len(all)-1)
	for i, row := range all[1:] {
		if !hasID {
			row = append([]string{strconv.Itoa(i + 1)}, row...)
		}
		if len(row) < len(logHeader) {
			padded := make([]string, len(logHeader))
			copy(padded, row)
			row = padded
		}
		id, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			logger.LogWarn("Skipping borrow log row %d with bad id %q", i+1, row[0])
			continue
		}
		records = append(records, LoanRecord{
			ID:         id,
			Name:       row[1],
			Phone:      row[2],
			StudentID:  row[3],
			Department: row[4],
			Items:      row[5],
			HandlerOut: row[6],
			BorrowedAt: row[7],
			Status:     row[8],
			HandlerIn:  row[9],
			ReturnedAt: row[10],
		})
	}
	return records, nil
}

// SaveLog rewrites the borrow log atomically.
func SaveLog(path string, records []LoanRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.ID),
			sanitizeCell(r.Name),
			sanitizeCell(r.Phone),
			sanitizeCell(r.StudentID),
			sanitizeCell(r.Department),
			sanitizeCell(r.Items),
			sanitizeCell(r.HandlerOut),
			r.BorrowedAt,
			r.Status,
			sanitizeCell(r.HandlerIn),
			r.ReturnedAt,
		})
	}
	return writeTable(path, logHeader, rows)
}

// NextID returns the next loan record key: one past the highest ever used.
func NextID(records []LoanRecord) int {
	next := 1
	for _, r := range records {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	return next
}

// LoadDepartments reads the department list (single 학과명 column).
func LoadDepartments(path string) ([]string, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	depts := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
			depts = append(depts, row[0])
		}
	}
	return depts, nil
}

// readTable returns the data rows of a CSV file, nil when the file is absent.
func readTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(all) <= 1 {
		return [][]string{}, nil
	}
	return all[1:], nil
}

// writeTable rewrites a whole CSV table through a temp file and rename, so
// concurrent readers never observe a truncated table.
func writeTable(path string, header []string, rows [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to write row for %s: %w", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}
