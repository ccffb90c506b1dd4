package data

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoticeNotFound is returned when a notice or attachment id is unknown.
var ErrNoticeNotFound = errors.New("notice not found")

const noticeTimeFormat = "2006-01-02 15:04:05"

// Notice is one notice-board post with its attachments.
type Notice struct {
	ID        int64
	Title     string
	Content   string
	Author    string
	Views     int
	Fixed     bool
	CreatedAt time.Time
	Files     []NoticeFile
}

// NoticeFile is one attachment row.
type NoticeFile struct {
	ID       int64  `json:"id"`
	NoticeID int64  `json:"-"`
	Filename string `json:"filename"`
}

// NoticeRepository handles all notice and attachment persistence.
type NoticeRepository struct {
	db *sql.DB
}

func NewNoticeRepository() *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Insert stores a notice and returns its generated id.
func (r *NoticeRepository) Insert(n *Notice) (int64, error) {
	if n.Author == "" {
		n.Author = "여정 학생회"
	}
	const stmt = `
		INSERT INTO notices (title, content, author, views, fixed, created_at)
		VALUES (?, ?, ?, 0, ?, ?)`

	result, err := ExecDB(stmt, n.Title, n.Content, n.Author, n.Fixed,
		n.CreatedAt.Format(noticeTimeFormat))
	if err != nil {
		return 0, fmt.Errorf("failed to insert notice: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read notice id: %w", err)
	}
	n.ID = id
	return id, nil
}

// GetByID loads one notice with its attachments.
func (r *NoticeRepository) GetByID(id int64) (*Notice, error) {
	const stmt = `
		SELECT id, title, content, author, views, fixed, created_at
		FROM notices WHERE id = ?`

	row := QueryRowDB(stmt, id)
	notice, err := scanNotice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoticeNotFound
		}
		return nil, err
	}

	files, err := r.FilesForNotice(id)
	if err != nil {
		return nil, err
	}
	notice.Files = files
	return notice, nil
}

// List returns every notice, fixed posts first, then newest first.
func (r *NoticeRepository) List() ([]Notice, error) {
	const stmt = `
		SELECT id, title, content, author, views, fixed, created_at
		FROM notices ORDER BY fixed DESC, created_at DESC, id DESC`

	rows, err := QueryDB(stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to query notices: %w", err)
	}
	defer rows.Close()

	var notices []Notice
	for rows.Next() {
		var n Notice
		var createdAt string
		var fixed int
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Author, &n.Views, &fixed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notice: %w", err)
		}
		n.Fixed = fixed != 0
		n.CreatedAt, _ = time.Parse(noticeTimeFormat, createdAt)
		notices = append(notices, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notices: %w", err)
	}

	for i := range notices {
		files, err := r.FilesForNotice(notices[i].ID)
		if err != nil {
			return nil, err
		}
		notices[i].Files = files
	}
	return notices, nil
}

// IncrementViews bumps the view counter by one.
func (r *NoticeRepository) IncrementViews(id int64) error {
	result, err := ExecDB(`UPDATE notices SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

// Update rewrites the editable fields of a notice.
func (r *NoticeRepository) Update(id int64, title, content string, fixed bool) error {
	result, err := ExecDB(
		`UPDATE notices SET title = ?, content = ?, fixed = ? WHERE id = ?`,
		title, content, fixed, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

// Delete removes a notice; attachments cascade.
func (r *NoticeRepository) Delete(id int64) error {
	result, err := ExecDB(`DELETE FROM notices WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

// InsertFile records an attachment unless the same filename already exists
// for that notice.
func (r *NoticeRepository) InsertFile(noticeID int64, filename string) error {
	var count int
	row := QueryRowDB(
		`SELECT COUNT(*) FROM notice_files WHERE notice_id = ? AND filename = ?`,
		noticeID, filename)
	if err := row.Scan(&count); err != nil {
		return fmt.Errorf("failed to check for existing file: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err := ExecDB(
		`INSERT INTO notice_files (notice_id, filename) VALUES (?, ?)`,
		noticeID, filename)
	if err != nil {
		return fmt.Errorf("failed to insert notice file: %w", err)
	}
	return nil
}

// GetFile loads one attachment row.
func (r *NoticeRepository) GetFile(fileID int64) (*NoticeFile, error) {
	var f NoticeFile
	row := QueryRowDB(
		`SELECT id, notice_id, filename FROM notice_files WHERE id = ?`, fileID)
	if err := row.Scan(&f.ID, &f.NoticeID, &f.Filename); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoticeNotFound
		}
		return nil, fmt.Errorf("failed to scan notice file: %w", err)
	}
	return &f, nil
}

// DeleteFile removes one attachment row.
func (r *NoticeRepository) DeleteFile(fileID int64) error {
	result, err := ExecDB(`DELETE FROM notice_files WHERE id = ?`, fileID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

// FilesForNotice lists the attachments of one notice.
func (r *NoticeRepository) FilesForNotice(noticeID int64) ([]NoticeFile, error) {
	rows, err := QueryDB(
		`SELECT id, notice_id, filename FROM notice_files WHERE notice_id = ? ORDER BY id`,
		noticeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notice files: %w", err)
	}
	defer rows.Close()

	files := []NoticeFile{}
	for rows.Next() {
		var f NoticeFile
		if err := rows.Scan(&f.ID, &f.NoticeID, &f.Filename); err != nil {
			return nil, fmt.Errorf("failed to scan notice file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func scanNotice(row *sql.Row) (*Notice, error) {
	var n Notice
	var createdAt string
	var fixed int
	if err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Author, &n.Views, &fixed, &createdAt); err != nil {
		return nil, err
	}
	n.Fixed = fixed != 0
	n.CreatedAt, _ = time.Parse(noticeTimeFormat, createdAt)
	return &n, nil
}
