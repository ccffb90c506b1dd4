// internal/ledger/ledger.go
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"clubbackend/internal/logger"
	"clubbackend/internal/store"
)

// KST is the civil time zone every stored timestamp uses.
var KST = time.FixedZone("KST", 9*60*60)

const (
	// TimeFormat is the stored timestamp layout.
	TimeFormat = "2006-01-02 15:04:05"
	// DateFormat is the date portion used for due dates and the dashboard.
	DateFormat = "2006-01-02"
	// loanPeriod is how long a borrower may keep an item.
	loanPeriod = 7 * 24 * time.Hour
)

var (
	// ErrRecordNotFound means the loan record id does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidState means the record exists but is not in the expected status.
	ErrInvalidState = errors.New("record is not in the expected status")
	// ErrValidation means a required request field is missing or empty.
	ErrValidation = errors.New("missing required field")
)

// ItemNotFoundError reports the first requested item absent from inventory.
type ItemNotFoundError struct {
	Item string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("%s 없는 물품입니다.", e.Item)
}

// OutOfStockError reports the first requested item with no stock left.
type OutOfStockError struct {
	Item string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s 재고가 부족합니다.", e.Item)
}

// BorrowRequest carries one borrow application.
type BorrowRequest struct {
	Name       string   `json:"name"`
	StudentID  string   `json:"student_id"`
	Department string   `json:"department"`
	Phone      string   `json:"phone"`
	Items      []string `json:"selected_items"`
}

// LoanStatus is one row of a borrower's self-service status lookup.
type LoanStatus struct {
	Items   string `json:"items"`
	Date    string `json:"date"`
	Status  string `json:"status"`
	DueDate string `json:"due_date"`
}

// PendingRequest is one row of the admin approval queue.
type PendingRequest struct {
	ID        int    `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	StudentID string `json:"student_id"`
	Phone     string `json:"phone,omitempty"`
	Items     string `json:"items"`
}

// Ledger owns the only write path to the inventory and borrow log tables.
// Every mutation runs under one mutex and rewrites both tables in full; the
// store makes each rewrite atomic, so lock-free readers never see a torn file.
type Ledger struct {
	stockPath string
	logPath   string
	mu        sync.Mutex
	now       func() time.Time
}

// New builds a Ledger over the two table files. A nil clock uses wall time.
func New(stockPath, logPath string, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{stockPath: stockPath, logPath: logPath, now: clock}
}

func (l *Ledger) timestamp() string {
	return l.now().In(KST).Format(TimeFormat)
}

// Items returns the full inventory table. Read-only, no lock.
func (l *Ledger) Items() ([]store.StockItem, error) {
	return store.LoadStock(l.stockPath)
}

// Borrow validates every requested item before touching any stock count,
// then decrements all of them and appends exactly one applied record.
// Either both tables change or neither does.
func (l *Ledger) Borrow(req BorrowRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.StudentID) == "" ||
		strings.TrimSpace(req.Department) == "" || strings.TrimSpace(req.Phone) == "" ||
		len(req.Items) == 0 {
		return ErrValidation
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := store.LoadStock(l.stockPath)
	if err != nil {
		return err
	}

	// Phase 1: validate everything. Duplicate request entries each consume
	// one unit, so track planned decrements while checking.
	planned := make(map[int]int)
	for _, name := range req.Items {
		idx := findItem(items, name)
		if idx < 0 {
			return &ItemNotFoundError{Item: name}
		}
		if items[idx].Stock == store.SentinelStock {
			continue
		}
		if items[idx].Stock-planned[idx] <= 0 {
			return &OutOfStockError{Item: name}
		}
		planned[idx]++
	}

	// Phase 2: commit.
	for idx, n := range planned {
		items[idx].Stock -= n
	}

	records, err := store.LoadLog(l.logPath)
	if err != nil {
		return err
	}
	record := store.LoanRecord{
		ID:         store.NextID(records),
		Name:       store.SanitizeField(req.Name),
		Phone:      store.SanitizeField(req.Phone),
		StudentID:  store.SanitizeField(req.StudentID),
		Department: store.SanitizeField(req.Department),
		Items:      store.JoinItems(req.Items),
		BorrowedAt: l.timestamp(),
		Status:     store.StatusApplied,
	}
	records = append(records, record)

	if err := store.SaveStock(l.stockPath, items); err != nil {
		return err
	}
	if err := store.SaveLog(l.logPath, records); err != nil {
		// The decrement is already on disk; put the old counts back so an
		// applied record never goes missing while stock stays reduced.
		for idx, n := range planned {
			items[idx].Stock += n
		}
		if restoreErr := store.SaveStock(l.stockPath, items); restoreErr != nil {
			logger.LogError("Failed to restore stock after log write failure: %v", restoreErr)
		}
		return err
	}

	logger.LogInfo("Borrow accepted: record %d, items [%s]", record.ID, record.Items)
	return nil
}

// Approve moves an applied record forward. Loans made up entirely of
// disposable items go straight to returned; everything else becomes
// unreturned and waits for Return.
func (l *Ledger) Approve(id int, handler string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := store.LoadLog(l.logPath)
	if err != nil {
		return err
	}
	idx := findRecord(records, id)
	if idx < 0 {
		return ErrRecordNotFound
	}
	if records[idx].Status != store.StatusApplied {
		return ErrInvalidState
	}

	items, err := store.LoadStock(l.stockPath)
	if err != nil {
		return err
	}

	allDisposable := true
	for _, name := range records[idx].ItemList() {
		itemIdx := findItem(items, name)
		if itemIdx < 0 || items[itemIdx].Category != store.CategoryDisposable {
			allDisposable = false
			break
		}
	}

	if allDisposable {
		records[idx].Status = store.StatusReturned
		records[idx].ReturnedAt = l.timestamp()
	} else {
		records[idx].Status = store.StatusUnreturned
	}
	records[idx].HandlerOut = store.SanitizeField(handler)

	return store.SaveLog(l.logPath, records)
}

// Reject restores the stock a borrow took and removes its record. The ids
// of all other records are untouched.
func (l *Ledger) Reject(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := store.LoadLog(l.logPath)
	if err != nil {
		return err
	}
	idx := findRecord(records, id)
	if idx < 0 {
		return ErrRecordNotFound
	}
	if records[idx].Status != store.StatusApplied {
		return ErrInvalidState
	}

	items, err := store.LoadStock(l.stockPath)
	if err != nil {
		return err
	}
	for _, name := range records[idx].ItemList() {
		itemIdx := findItem(items, name)
		if itemIdx >= 0 && items[itemIdx].Stock != store.SentinelStock {
			items[itemIdx].Stock++
		}
	}

	records = append(records[:idx], records[idx+1:]...)

	if err := store.SaveStock(l.stockPath, items); err != nil {
		return err
	}
	return store.SaveLog(l.logPath, records)
}

// Return closes an unreturned loan and puts countable items back in stock.
func (l *Ledger) Return(id int, handler string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := store.LoadLog(l.logPath)
	if err != nil {
		return err
	}
	idx := findRecord(records, id)
	if idx < 0 {
		return ErrRecordNotFound
	}
	if records[idx].Status != store.StatusUnreturned {
		return ErrInvalidState
	}

	items, err := store.LoadStock(l.stockPath)
	if err != nil {
		return err
	}
	for _, name := range records[idx].ItemList() {
		itemIdx := findItem(items, name)
		if itemIdx < 0 {
			continue
		}
		if items[itemIdx].Category != store.CategoryDisposable &&
			items[itemIdx].Stock != store.SentinelStock {
			items[itemIdx].Stock++
		}
	}

	records[idx].Status = store.StatusReturned
	records[idx].HandlerIn = store.SanitizeField(handler)
	records[idx].ReturnedAt = l.timestamp()

	if err := store.SaveStock(l.stockPath, items); err != nil {
		return err
	}
	return store.SaveLog(l.logPath, records)
}

// CheckStatus returns a borrower's loan history, newest first, with a due
// date seven days after each borrow. Matching is exact on both fields.
func (l *Ledger) CheckStatus(name, studentID string) ([]LoanStatus, error) {
	records, err := store.LoadLog(l.logPath)
	if err != nil {
		return nil, err
	}

	var result []LoanStatus
	for _, r := range records {
		if r.Name != name || r.StudentID != studentID {
			continue
		}
		due := "-"
		if borrowed, err := time.ParseInLocation(TimeFormat, r.BorrowedAt, KST); err == nil {
			due = borrowed.Add(loanPeriod).Format(DateFormat)
		}
		result = append(result, LoanStatus{
			Items:   r.Items,
			Date:    r.BorrowedAt,
			Status:  r.Status,
			DueDate: due,
		})
	}
	reverseStatuses(result)
	return result, nil
}

// Dashboard returns today's borrow count and the five most recent records,
// newest first.
func (l *Ledger) Dashboard() (int, []store.LoanRecord, error) {
	records, err := store.LoadLog(l.logPath)
	if err != nil {
		return 0, nil, err
	}

	today := l.now().In(KST).Format(DateFormat)
	todayCount := 0
	for _, r := range records {
		if strings.Contains(r.BorrowedAt, today) {
			todayCount++
		}
	}

	n := 5
	if len(records) < n {
		n = len(records)
	}
	recent := make([]store.LoanRecord, 0, n)
	for i := len(records) - 1; i >= len(records)-n; i-- {
		recent = append(recent, records[i])
	}
	return todayCount, recent, nil
}

// Pending returns all applied records, newest first.
func (l *Ledger) Pending() ([]PendingRequest, error) {
	return l.filterRequests(store.StatusApplied, false)
}

// Ongoing returns all unreturned records, newest first.
func (l *Ledger) Ongoing() ([]PendingRequest, error) {
	return l.filterRequests(store.StatusUnreturned, true)
}

func (l *Ledger) filterRequests(status string, withPhone bool) ([]PendingRequest, error) {
	records, err := store.LoadLog(l.logPath)
	if err != nil {
		return nil, err
	}
	result := make([]PendingRequest, 0)
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.Status != status {
			continue
		}
		req := PendingRequest{
			ID:        r.ID,
			Date:      r.BorrowedAt,
			Name:      r.Name,
			StudentID: r.StudentID,
			Items:     r.Items,
		}
		if withPhone {
			req.Phone = r.Phone
		}
		result = append(result, req)
	}
	return result, nil
}

// AllRecords returns the whole borrow log, newest first.
func (l *Ledger) AllRecords() ([]store.LoanRecord, error) {
	records, err := store.LoadLog(l.logPath)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// ReplaceStock overwrites the whole inventory table.
func (l *Ledger) ReplaceStock(items []store.StockItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return store.SaveStock(l.stockPath, items)
}

// AddItem appends one inventory row. An empty category gets the default.
func (l *Ledger) AddItem(name string, count int, category string) error {
	if strings.TrimSpace(name) == "" {
		return ErrValidation
	}
	if category == "" {
		category = store.CategoryDefault
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := store.LoadStock(l.stockPath)
	if err != nil {
		return err
	}
	items = append(items, store.StockItem{Name: name, Stock: count, Category: category})
	return store.SaveStock(l.stockPath, items)
}

// DeleteItem removes every inventory row with the given name.
func (l *Ledger) DeleteItem(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := store.LoadStock(l.stockPath)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if it.Name != name {
			kept = append(kept, it)
		}
	}
	return store.SaveStock(l.stockPath, kept)
}

func findItem(items []store.StockItem, name string) int {
	for i, it := range items {
		if it.Name == name {
			return i
		}
	}
	return -1
}

func findRecord(records []store.LoanRecord, id int) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func reverseStatuses(s []LoanStatus) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
