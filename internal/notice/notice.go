// internal/notice/notice.go
package notice

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clubbackend/internal/config"
	"clubbackend/internal/data"
	"clubbackend/internal/ledger"
	"clubbackend/internal/logger"
	"clubbackend/internal/middleware"
)

// maxUploadSize bounds one multipart request body.
const maxUploadSize = 20 << 20

var allowedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".pdf": true, ".hwp": true, ".docx": true, ".xlsx": true,
}

// Handlers serves the notice board API.
type Handlers struct {
	Repo *data.NoticeRepository
}

func NewHandlers(repo *data.NoticeRepository) *Handlers {
	return &Handlers{Repo: repo}
}

// view is the response shape of one notice.
type view struct {
	ID      int64             `json:"id"`
	Title   string            `json:"title"`
	Content string            `json:"content"`
	Author  string            `json:"author"`
	Views   int               `json:"views"`
	Fixed   bool              `json:"fixed"`
	Date    string            `json:"date"`
	Files   []data.NoticeFile `json:"files"`
}

func toView(n data.Notice) view {
	files := n.Files
	if files == nil {
		files = []data.NoticeFile{}
	}
	return view{
		ID:      n.ID,
		Title:   n.Title,
		Content: n.Content,
		Author:  n.Author,
		Views:   n.Views,
		Fixed:   n.Fixed,
		Date:    n.CreatedAt.Format("2006-01-02"),
		Files:   files,
	}
}

func allowedFile(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// List handles GET /api/notices: fixed posts first, then newest.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	notices, err := h.Repo.List()
	if err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	views := make([]view, 0, len(notices))
	for _, n := range notices {
		views = append(views, toView(n))
	}
	middleware.WriteJSON(w, http.StatusOK, views)
}

// Detail handles GET /api/notices/{id}. The view counter only moves when
// the frontend explicitly asks with ?increment=true.
func (h *Handlers) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "공지사항을 찾을 수 없습니다."})
		return
	}

	if r.URL.Query().Get("increment") == "true" {
		if err := h.Repo.IncrementViews(id); err != nil && !errors.Is(err, data.ErrNoticeNotFound) {
			middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}

	notice, err := h.Repo.GetByID(id)
	if err != nil {
		if errors.Is(err, data.ErrNoticeNotFound) {
			middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "공지사항을 찾을 수 없습니다."})
			return
		}
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toView(*notice))
}

// Create handles POST /api/notices (multipart form, admin only).
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		if err := r.ParseForm(); err != nil {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "잘못된 요청입니다."})
			return
		}
	}

	title := strings.TrimSpace(r.FormValue("title"))
	content := r.FormValue("content")
	author := r.FormValue("author")
	fixed := r.FormValue("fixed") == "true"

	if title == "" || content == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "제목과 내용은 필수입니다."})
		return
	}

	notice := data.Notice{
		Title:     title,
		Content:   content,
		Author:    author,
		Fixed:     fixed,
		CreatedAt: time.Now().In(ledger.KST),
	}
	id, err := h.Repo.Insert(&notice)
	if err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.saveUploads(r, id); err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	created, err := h.Repo.GetByID(id)
	if err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "등록 성공",
		"data":    toView(*created),
	})
}

// Update handles PUT /api/notices/{id} (multipart form, admin only).
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "공지사항을 찾을 수 없습니다."})
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		if err := r.ParseForm(); err != nil {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "잘못된 요청입니다."})
			return
		}
	}

	title := r.FormValue("title")
	content := r.FormValue("content")
	fixed := r.FormValue("fixed") == "true"

	if err := h.Repo.Update(id, title, content, fixed); err != nil {
		if errors.Is(err, data.ErrNoticeNotFound) {
			middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "공지사항을 찾을 수 없습니다."})
			return
		}
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.saveUploads(r, id); err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "수정 성공"})
}

// Delete handles DELETE /api/notices/{id}: removes the row, its attachment
// rows, and the upload directory.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "공지사항을 찾을 수 없습니다."})
		return
	}

	if err := h.Repo.Delete(id); err != nil {
		if errors.Is(err, data.ErrNoticeNotFound) {
			middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "공지사항을 찾을 수 없습니다."})
			return
		}
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	dir := h.uploadDir(id)
	if err := os.RemoveAll(dir); err != nil {
		logger.LogWarn("Failed to remove upload directory %s: %v", dir, err)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "삭제 성공"})
}

// DeleteFile handles DELETE /api/notices/file/{file_id}: one attachment.
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := strconv.ParseInt(r.PathValue("file_id"), 10, 64)
	if err != nil {
		middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "파일을 찾을 수 없습니다."})
		return
	}

	record, err := h.Repo.GetFile(fileID)
	if err != nil {
		if errors.Is(err, data.ErrNoticeNotFound) {
			middleware.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "파일을 찾을 수 없습니다."})
			return
		}
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	path := filepath.Join(h.uploadDir(record.NoticeID), filepath.Base(record.Filename))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.LogWarn("Failed to remove attachment %s: %v", path, err)
	}

	if err := h.Repo.DeleteFile(fileID); err != nil {
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "파일 삭제 성공"})
}

// Download handles GET /api/notices/download/{notice_id}/{filename}.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	noticeID, err := strconv.ParseInt(r.PathValue("notice_id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	filename := filepath.Base(r.PathValue("filename"))

	path := filepath.Join(h.uploadDir(noticeID), filename)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	http.ServeFile(w, r, path)
}

func (h *Handlers) uploadDir(noticeID int64) string {
	return filepath.Join(config.UploadsDirectory(), strconv.FormatInt(noticeID, 10))
}

// saveUploads stores every allowed file of the multipart request and records
// it against the notice.
func (h *Handlers) saveUploads(r *http.Request, noticeID int64) error {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return nil
	}

	dir := h.uploadDir(noticeID)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	for _, header := range files {
		filename := filepath.Base(header.Filename)
		if filename == "" || !allowedFile(filename) {
			logger.LogWarn("Skipping disallowed upload %q for notice %d", header.Filename, noticeID)
			continue
		}
		if err := saveFile(header, filepath.Join(dir, filename)); err != nil {
			return err
		}
		if err := h.Repo.InsertFile(noticeID, filename); err != nil {
			return err
		}
	}
	return nil
}

func saveFile(header *multipart.FileHeader, dest string) error {
	src, err := header.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
