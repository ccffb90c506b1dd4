// internal/ledger/handlers.go
package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"clubbackend/internal/config"
	"clubbackend/internal/middleware"
	"clubbackend/internal/store"
)

// Handlers exposes the lending API over one Ledger instance.
type Handlers struct {
	Ledger *Ledger
}

func NewHandlers(l *Ledger) *Handlers {
	return &Handlers{Ledger: l}
}

// writeLedgerError maps ledger failures onto the API envelope.
func writeLedgerError(w http.ResponseWriter, err error) {
	var notFound *ItemNotFoundError
	var outOfStock *OutOfStockError

	switch {
	case errors.Is(err, ErrValidation):
		middleware.WriteFail(w, http.StatusBadRequest, "모든 정보를 입력해주세요.")
	case errors.As(err, &notFound), errors.As(err, &outOfStock):
		middleware.WriteFail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrInvalidState):
		// Same shape the admin UI already handles: no HTTP-level distinction.
		middleware.WriteJSON(w, http.StatusOK, middleware.StatusResponse{Status: "fail"})
	default:
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// Items handles GET /api/items.
func (h *Handlers) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.Ledger.Items()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{"data": items})
}

// Departments handles GET /api/departments.
func (h *Handlers) Departments(w http.ResponseWriter, r *http.Request) {
	depts, err := store.LoadDepartments(config.MajorFile)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{"data": depts})
}

// Borrow handles POST /api/borrow.
func (h *Handlers) Borrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	if err := h.Ledger.Borrow(req); err != nil {
		writeLedgerError(w, err)
		return
	}
	middleware.WriteSuccess(w, nil)
}

// Check handles POST /api/check.
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		StudentID string `json:"student_id"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}

	statuses, err := h.Ledger.CheckStatus(req.Name, req.StudentID)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(statuses) == 0 {
		middleware.WriteFail(w, http.StatusOK, "기록이 없습니다.")
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{
		"data": statuses,
		"user_info": map[string]string{
			"name":       req.Name,
			"student_id": req.StudentID,
		},
	})
}

// Dashboard handles GET /api/admin/dashboard.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	todayCount, recent, err := h.Ledger.Dashboard()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{
		"today_count": todayCount,
		"recent_logs": recent,
	})
}

// Requests handles GET /api/admin/requests.
func (h *Handlers) Requests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Ledger.Pending()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{"data": pending})
}

// Approve handles POST /api/admin/approve.
func (h *Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      int    `json:"id"`
		Handler string `json:"handler"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	if err := h.Ledger.Approve(req.ID, req.Handler); err != nil {
		writeLedgerError(w, err)
		return
	}
	middleware.WriteSuccess(w, nil)
}

// Reject handles POST /api/admin/reject.
func (h *Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int `json:"id"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	if err := h.Ledger.Reject(req.ID); err != nil {
		writeLedgerError(w, err)
		return
	}
	middleware.WriteSuccess(w, nil)
}

// Ongoing handles GET /api/admin/ongoing.
func (h *Handlers) Ongoing(w http.ResponseWriter, r *http.Request) {
	ongoing, err := h.Ledger.Ongoing()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{"data": ongoing})
}

// Return handles POST /api/admin/return.
func (h *Handlers) Return(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      int    `json:"id"`
		Handler string `json:"handler"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	if err := h.Ledger.Return(req.ID, req.Handler); err != nil {
		writeLedgerError(w, err)
		return
	}
	middleware.WriteSuccess(w, nil)
}

// Logs handles GET /api/admin/logs.
func (h *Handlers) Logs(w http.ResponseWriter, r *http.Request) {
	records, err := h.Ledger.AllRecords()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, map[string]interface{}{"data": records})
}

// DownloadLog handles GET /api/admin/download_log: the raw borrow log as a
// CSV attachment with a timestamped Korean filename.
func (h *Handlers) DownloadLog(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(h.Ledger.logPath); err != nil {
		middleware.WriteFail(w, http.StatusNotFound, "파일이 없습니다.")
		return
	}

	timestamp := h.Ledger.now().In(KST).Format("20060102_150405")
	filename := fmt.Sprintf("대여반납기록_%s.csv", timestamp)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="loan_log.csv"; filename*=UTF-8''%s`, url.PathEscape(filename)))
	http.ServeFile(w, r, h.Ledger.logPath)
}

// UpdateStock handles POST /api/admin/stock/update: replaces the whole table.
func (h *Handlers) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []store.StockItem `json:"items"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	if err := h.Ledger.ReplaceStock(req.Items); err != nil {
		middleware.WriteFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, nil)
}

// AddStockItem handles POST /api/admin/stock/add.
func (h *Handlers) AddStockItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Count    int    `json:"count"`
		Category string `json:"category"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	if err := h.Ledger.AddItem(store.SanitizeField(req.Name), req.Count, store.SanitizeField(req.Category)); err != nil {
		writeLedgerError(w, err)
		return
	}
	middleware.WriteSuccess(w, nil)
}

// DeleteStockItem handles POST /api/admin/stock/delete.
func (h *Handlers) DeleteStockItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteFail(w, http.StatusBadRequest, "잘못된 요청입니다.")
		return
	}
	if err := h.Ledger.DeleteItem(req.Name); err != nil {
		middleware.WriteFail(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteSuccess(w, nil)
}
