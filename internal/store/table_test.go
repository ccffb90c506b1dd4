package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStockMissingFile(t *testing.T) {
	items, err := LoadStock(filepath.Join(t.TempDir(), "stock.csv"))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.csv")
	in := []StockItem{
		{Name: "우산", Stock: 5, Category: CategoryDefault},
		{Name: "종이컵", Stock: SentinelStock, Category: CategoryDisposable},
	}
	require.NoError(t, SaveStock(path, in))

	out, err := LoadStock(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFormulaInjectionGuard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.csv")
	require.NoError(t, SaveStock(path, []StockItem{
		{Name: "=SUM(A1:A9)", Stock: 1, Category: CategoryDefault},
	}))

	out, err := LoadStock(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "'=SUM(A1:A9)", out[0].Name)

	assert.Equal(t, "'@cmd", SanitizeField("@cmd"))
	assert.Equal(t, "'+1", SanitizeField("+1"))
	assert.Equal(t, "홍길동", SanitizeField("홍길동"))
}

func TestLogRoundTripKeepsIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "borrow_log.csv")
	in := []LoanRecord{
		{ID: 1, Name: "홍길동", Phone: "01012345678", StudentID: "20231234",
			Department: "컴퓨터공학과", Items: "우산", BorrowedAt: "2026-03-02 14:30:00", Status: StatusApplied},
		{ID: 7, Name: "김영희", Phone: "01087654321", StudentID: "20242345",
			Department: "경영학과", Items: "보조배터리, 우산", BorrowedAt: "2026-03-02 15:00:00", Status: StatusUnreturned},
	}
	require.NoError(t, SaveLog(path, in))

	out, err := LoadLog(path)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].ID)
	assert.Equal(t, 7, out[1].ID)
	assert.Equal(t, []string{"보조배터리", "우산"}, out[1].ItemList())
}

func TestLoadLogLegacyFileWithoutIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "borrow_log.csv")
	legacy := "이름,전화번호,학번,학과,대여물품,대여담당자,대여시각,대여현황,반납담당자,반납시각\n" +
		"홍길동,01012345678,20231234,컴퓨터공학과,우산,,2025-05-01 10:00:00,신청,,\n" +
		"김영희,01087654321,20242345,경영학과,볼펜,,2025-05-02 11:00:00,반납완료,,2025-05-03 09:00:00\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0664))

	records, err := LoadLog(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].ID)
	assert.Equal(t, 2, records[1].ID)
	assert.Equal(t, "홍길동", records[0].Name)
	assert.Equal(t, StatusReturned, records[1].Status)

	// The next save persists the assigned ids.
	require.NoError(t, SaveLog(path, records))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "id,"))
}

func TestNextIDNeverReuses(t *testing.T) {
	assert.Equal(t, 1, NextID(nil))
	assert.Equal(t, 6, NextID([]LoanRecord{{ID: 2}, {ID: 5}, {ID: 1}}))

	// Deleting the newest record must not hand its id back out.
	records := []LoanRecord{{ID: 1}, {ID: 2}, {ID: 3}}
	records = records[:2]
	assert.Equal(t, 3, NextID(records))
}

func TestWriteTableLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stock.csv")
	require.NoError(t, SaveStock(path, []StockItem{{Name: "우산", Stock: 2, Category: CategoryDefault}}))
	require.NoError(t, SaveStock(path, []StockItem{{Name: "우산", Stock: 1, Category: CategoryDefault}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stock.csv", entries[0].Name())
}

func TestLoadDepartments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "major.csv")
	require.NoError(t, os.WriteFile(path, []byte("학과명\n컴퓨터공학과\n경영학과\n\n"), 0664))

	depts, err := LoadDepartments(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"컴퓨터공학과", "경영학과"}, depts)
}
