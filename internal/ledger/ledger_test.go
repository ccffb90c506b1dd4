package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubbackend/internal/store"
)

var testClockBase = time.Date(2026, 3, 2, 14, 30, 0, 0, KST)

func newTestLedger(t *testing.T, items []store.StockItem) *Ledger {
	t.Helper()
	dir := t.TempDir()
	stockPath := filepath.Join(dir, "stock.csv")
	logPath := filepath.Join(dir, "borrow_log.csv")
	require.NoError(t, store.SaveStock(stockPath, items))
	return New(stockPath, logPath, func() time.Time { return testClockBase })
}

func defaultStock() []store.StockItem {
	return []store.StockItem{
		{Name: "우산", Stock: 2, Category: store.CategoryDefault},
		{Name: "볼펜", Stock: 5, Category: store.CategoryDefault},
		{Name: "종이컵", Stock: store.SentinelStock, Category: store.CategoryDisposable},
	}
}

func borrowRequest(items ...string) BorrowRequest {
	return BorrowRequest{
		Name:       "홍길동",
		StudentID:  "20231234",
		Department: "컴퓨터공학과",
		Phone:      "01012345678",
		Items:      items,
	}
}

func stockOf(t *testing.T, l *Ledger, name string) int {
	t.Helper()
	items, err := l.Items()
	require.NoError(t, err)
	for _, it := range items {
		if it.Name == name {
			return it.Stock
		}
	}
	t.Fatalf("item %s not in stock table", name)
	return 0
}

func TestBorrowValidation(t *testing.T) {
	l := newTestLedger(t, defaultStock())

	req := borrowRequest("우산")
	req.Name = "  "
	assert.ErrorIs(t, l.Borrow(req), ErrValidation)

	assert.ErrorIs(t, l.Borrow(borrowRequest()), ErrValidation)
}

func TestBorrowUnknownItem(t *testing.T) {
	l := newTestLedger(t, defaultStock())

	err := l.Borrow(borrowRequest("우산", "텀블러"))
	var notFound *ItemNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "텀블러", notFound.Item)
	assert.Equal(t, "텀블러 없는 물품입니다.", err.Error())

	// Nothing may change when any item fails validation.
	assert.Equal(t, 2, stockOf(t, l, "우산"))
	records, err := store.LoadLog(l.logPath)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBorrowShortageIsAtomic(t *testing.T) {
	l := newTestLedger(t, defaultStock())

	// Three umbrellas against a stock of two: the request must fail before
	// any count moves.
	err := l.Borrow(borrowRequest("우산", "우산", "우산"))
	var outOfStock *OutOfStockError
	require.ErrorAs(t, err, &outOfStock)
	assert.Equal(t, "우산", outOfStock.Item)

	assert.Equal(t, 2, stockOf(t, l, "우산"))
	assert.Equal(t, 5, stockOf(t, l, "볼펜"))
	records, err := store.LoadLog(l.logPath)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBorrowDecrementsAndAppends(t *testing.T) {
	l := newTestLedger(t, defaultStock())

	require.NoError(t, l.Borrow(borrowRequest("우산", "볼펜")))

	assert.Equal(t, 1, stockOf(t, l, "우산"))
	assert.Equal(t, 4, stockOf(t, l, "볼펜"))

	records, err := store.LoadLog(l.logPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, 1, r.ID)
	assert.Equal(t, "홍길동", r.Name)
	assert.Equal(t, "우산, 볼펜", r.Items)
	assert.Equal(t, store.StatusApplied, r.Status)
	assert.Equal(t, "2026-03-02 14:30:00", r.BorrowedAt)
	assert.Empty(t, r.ReturnedAt)
}

func TestBorrowSentinelStockNeverMoves(t *testing.T) {
	l := newTestLedger(t, defaultStock())

	require.NoError(t, l.Borrow(borrowRequest("종이컵", "종이컵")))
	assert.Equal(t, store.SentinelStock, stockOf(t, l, "종이컵"))
}

func TestApproveFlow(t *testing.T) {
	l := newTestLedger(t, defaultStock())
	require.NoError(t, l.Borrow(borrowRequest("우산")))

	assert.ErrorIs(t, l.Approve(99, "관리자"), ErrRecordNotFound)

	require.NoError(t, l.Approve(1, "관리자"))
	records, err := store.LoadLog(l.logPath)
	require.NoError(t, err)
	assert.Equal(t, store.StatusUnreturned, records[0].Status)
	assert.Equal(t, "관리자", records[0].HandlerOut)
	assert.Empty(t, records[0].ReturnedAt)

	assert.ErrorIs(t, l.Approve(1, "관리자"), ErrInvalidState)
}

func TestApproveAllDisposableClosesImmediately(t *testing.T) {
	l := newTestLedger(t, defaultStock())
	require.NoError(t, l.Borrow(borrowRequest("종이컵")))

	require.NoError(t, l.Approve(1, "관리자"))
	records, err := store.LoadLog(l.logPath)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReturned, records[0].Status)
	assert.Equal(t, "2026-03-02 14:30:00", records[0].ReturnedAt)
	assert.Equal(t, store.SentinelStock, stockOf(t, l, "종이컵"))
}

func TestRejectRestoresStockAndKeepsIDs(t *testing.T) {
	l := newTestLedger(t, defaultStock())
	require.NoError(t, l.Borrow(borrowRequest("우산")))
	require.NoError(t, l.Borrow(borrowRequest("볼펜")))

	require.NoError(t, l.Reject(1))
	assert.Equal(t, 2, stockOf(t, l, "우산"))

	records, err := store.LoadLog(l.logPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].ID)

	// A rejected id is gone for good; the next borrow continues past it.
	require.NoError(t, l.Borrow(borrowRequest("우산")))
	records, err = store.LoadLog(l.logPath)
	require.NoError(t, err)
	assert.Equal(t, 3, records[1].ID)

	assert.ErrorIs(t, l.Reject(1), ErrRecordNotFound)
}

func TestRejectRequiresAppliedStatus(t *testing.T) {
	l := newTestLedger(t, defaultStock())
	require.NoError(t, l.Borrow(borrowRequest("우산")))
	require.NoError(t, l.Approve(1, "관리자"))

	assert.ErrorIs(t, l.Reject(1), ErrInvalidState)
	assert.Equal(t, 1, stockOf(t, l, "우산"))
}

func TestReturnRestocksCountableItems(t *testing.T) {
	l := newTestLedger(t, defaultStock())
	require.NoError(t, l.Borrow(borrowRequest("우산", "종이컵")))

	assert.ErrorIs(t, l.Return(1, "관리자"), ErrInvalidState)

	require.NoError(t, l.Approve(1, "관리자"))
	require.NoError(t, l.Return(1, "부관리자"))

	assert.Equal(t, 2, stockOf(t, l, "우산"))
	assert.Equal(t, store.SentinelStock, stockOf(t, l, "종이컵"))

	records, err := store.LoadLog(l.logPath)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReturned, records[0].Status)
	assert.Equal(t, "부관리자", records[0].HandlerIn)
	assert.Equal(t, "2026-03-02 14:30:00", records[0].ReturnedAt)

	assert.ErrorIs(t, l.Return(1, "관리자"), ErrInvalidState)
	assert.ErrorIs(t, l.Return(99, "관리자"), ErrRecordNotFound)
}

func TestCheckStatusNewestFirstWithDueDate(t *testing.T) {
	l := newTestLedger(t, defaultStock())
	require.NoError(t, l.Borrow(borrowRequest("우산")))

	l.now = func() time.Time { return testClockBase.Add(time.Hour) }
	require.NoError(t, l.Borrow(borrowRequest("볼펜")))

	other := borrowRequest("볼펜")
	other.Name = "김영희"
	other.StudentID = "20242345"
	require.NoError(t, l.Borrow(other))

	statuses, err := l.CheckStatus("홍길동", "20231234")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "볼펜", statuses[0].Items)
	assert.Equal(t, "2026-03-02 15:30:00", statuses[0].Date)
	assert.Equal(t, "2026-03-09", statuses[0].DueDate)
	assert.Equal(t, "우산", statuses[1].Items)

	// Matching is exact on both fields.
	none, err := l.CheckStatus("홍길동", "20249999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDashboard(t *testing.T) {
	l := newTestLedger(t, []store.StockItem{
		{Name: "볼펜", Stock: 20, Category: store.CategoryDefault},
	})
	for i := 0; i < 6; i++ {
		require.NoError(t, l.Borrow(borrowRequest("볼펜")))
	}

	todayCount, recent, err := l.Dashboard()
	require.NoError(t, err)
	assert.Equal(t, 6, todayCount)
	require.Len(t, recent, 5)
	assert.Equal(t, 6, recent[0].ID)
	assert.Equal(t, 2, recent[4].ID)

	// A borrow from another day stays out of the count.
	l.now = func() time.Time { return testClockBase.AddDate(0, 0, 1) }
	todayCount, _, err = l.Dashboard()
	require.NoError(t, err)
	assert.Equal(t, 0, todayCount)
}

func TestPendingAndOngoing(t *testing.T) {
	l := newTestLedger(t, defaultStock())
	require.NoError(t, l.Borrow(borrowRequest("우산")))
	require.NoError(t, l.Borrow(borrowRequest("볼펜")))
	require.NoError(t, l.Approve(1, "관리자"))

	pending, err := l.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].ID)
	assert.Empty(t, pending[0].Phone)

	ongoing, err := l.Ongoing()
	require.NoError(t, err)
	require.Len(t, ongoing, 1)
	assert.Equal(t, 1, ongoing[0].ID)
	assert.Equal(t, "01012345678", ongoing[0].Phone)
}

func TestStockAdministration(t *testing.T) {
	l := newTestLedger(t, defaultStock())

	assert.ErrorIs(t, l.AddItem("  ", 3, ""), ErrValidation)

	require.NoError(t, l.AddItem("담요", 3, ""))
	items, err := l.Items()
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, store.CategoryDefault, items[3].Category)

	require.NoError(t, l.DeleteItem("담요"))
	items, err = l.Items()
	require.NoError(t, err)
	assert.Len(t, items, 3)

	require.NoError(t, l.ReplaceStock([]store.StockItem{
		{Name: "우산", Stock: 10, Category: store.CategoryDefault},
	}))
	assert.Equal(t, 10, stockOf(t, l, "우산"))
}
