package notice

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubbackend/internal/config"
	"clubbackend/internal/data"
)

func setupNoticeTest(t *testing.T) *Handlers {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIRECTORY", filepath.Join(dir, "data"))
	t.Setenv("UPLOADS_DIRECTORY", filepath.Join(dir, "uploads"))
	t.Setenv("LOGS_DIRECTORY", filepath.Join(dir, "logs"))
	config.ConfigurePaths()

	require.NoError(t, data.InitDB(filepath.Join(dir, "test.db")))
	require.NoError(t, data.CreateTables())
	t.Cleanup(func() { data.CloseDB() })

	return NewHandlers(data.NewNoticeRepository())
}

type formFile struct {
	name    string
	content string
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files []formFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func createNotice(t *testing.T, h *Handlers, fields map[string]string, files []formFile) view {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Create(rec, multipartRequest(t, http.MethodPost, "/api/notices", fields, files))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Message string `json:"message"`
		Data    view   `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "등록 성공", body.Message)
	return body.Data
}

func TestCreateRequiresTitleAndContent(t *testing.T) {
	h := setupNoticeTest(t)

	rec := httptest.NewRecorder()
	h.Create(rec, multipartRequest(t, http.MethodPost, "/api/notices",
		map[string]string{"title": "  ", "content": ""}, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "제목과 내용은 필수입니다.")
}

func TestCreateWithAttachment(t *testing.T) {
	h := setupNoticeTest(t)

	created := createNotice(t, h,
		map[string]string{"title": "자료 공지", "content": "첨부 확인"},
		[]formFile{
			{name: "plan.pdf", content: "%PDF-1.4"},
			{name: "malware.exe", content: "MZ"},
		})

	assert.Equal(t, "여정 학생회", created.Author)
	// The executable is silently skipped.
	require.Len(t, created.Files, 1)
	assert.Equal(t, "plan.pdf", created.Files[0].Filename)

	saved := filepath.Join(config.UploadsDirectory(), "1", "plan.pdf")
	_, err := os.Stat(saved)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(config.UploadsDirectory(), "1", "malware.exe"))
	assert.True(t, os.IsNotExist(err))
}

func TestDetailAndViewCounter(t *testing.T) {
	h := setupNoticeTest(t)
	created := createNotice(t, h, map[string]string{"title": "공지", "content": "내용"}, nil)

	get := func(target, id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.SetPathValue("id", id)
		rec := httptest.NewRecorder()
		h.Detail(rec, req)
		return rec
	}

	// A plain read does not move the counter.
	rec := get("/api/notices/1", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	var got view
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 0, got.Views)

	rec = get("/api/notices/1?increment=true", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Views)

	rec = get("/api/notices/999", "999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateNotice(t *testing.T) {
	h := setupNoticeTest(t)
	createNotice(t, h, map[string]string{"title": "공지", "content": "내용"}, nil)

	req := multipartRequest(t, http.MethodPut, "/api/notices/1",
		map[string]string{"title": "수정된 공지", "content": "수정된 내용", "fixed": "true"}, nil)
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	h.Update(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "수정 성공")

	detailReq := httptest.NewRequest(http.MethodGet, "/api/notices/1", nil)
	detailReq.SetPathValue("id", "1")
	rec = httptest.NewRecorder()
	h.Detail(rec, detailReq)
	var got view
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "수정된 공지", got.Title)
	assert.True(t, got.Fixed)
}

func TestDeleteNoticeRemovesUploads(t *testing.T) {
	h := setupNoticeTest(t)
	createNotice(t, h,
		map[string]string{"title": "공지", "content": "내용"},
		[]formFile{{name: "photo.png", content: "png-bytes"}})

	uploadDir := filepath.Join(config.UploadsDirectory(), "1")
	_, err := os.Stat(uploadDir)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/notices/1", nil)
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "삭제 성공")

	_, err = os.Stat(uploadDir)
	assert.True(t, os.IsNotExist(err))

	req = httptest.NewRequest(http.MethodDelete, "/api/notices/1", nil)
	req.SetPathValue("id", "1")
	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadAttachment(t *testing.T) {
	h := setupNoticeTest(t)
	createNotice(t, h,
		map[string]string{"title": "공지", "content": "내용"},
		[]formFile{{name: "plan.pdf", content: "%PDF-1.4 content"}})

	req := httptest.NewRequest(http.MethodGet, "/api/notices/download/1/plan.pdf", nil)
	req.SetPathValue("notice_id", "1")
	req.SetPathValue("filename", "plan.pdf")
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.4 content", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	// Path traversal collapses to the base name, which does not exist.
	req = httptest.NewRequest(http.MethodGet, "/api/notices/download/1/x", nil)
	req.SetPathValue("notice_id", "1")
	req.SetPathValue("filename", "../../etc/passwd")
	rec = httptest.NewRecorder()
	h.Download(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
