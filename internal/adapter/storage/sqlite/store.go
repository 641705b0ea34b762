package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"

	"github.com/videoflix/videoflix/internal/domain"
	"github.com/videoflix/videoflix/internal/port"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

var hookOnce sync.Once

func registerHook() {
	hookOnce.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			pragmas := []string{
				"PRAGMA journal_mode = WAL",
				"PRAGMA busy_timeout = 5000",
				"PRAGMA synchronous = NORMAL",
				"PRAGMA foreign_keys = ON",
			}
			for _, p := range pragmas {
				if _, err := conn.ExecContext(context.Background(), p, nil); err != nil {
					return fmt.Errorf("execute %s: %w", p, err)
				}
			}
			return nil
		})
	})
}

func NewStore(dataDir string) (*Store, error) {
	registerHook()

	dbPath := filepath.Join(dataDir, "videoflix.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite (WAL allows concurrent reads but only one writer)
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Save(v *domain.Video) error {
	res, err := s.db.Exec(`
		INSERT INTO videos (title, description, category, source_path, thumb_path, status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Title, v.Description, v.Category, v.SourcePath, v.ThumbPath,
		string(v.Status), v.ErrorMessage, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("video id: %w", err)
	}
	v.ID = id
	return nil
}

const videoColumns = `id, title, description, category, source_path, thumb_path, status, error_message, created_at`

func (s *Store) Get(id int64) (*domain.Video, error) {
	row := s.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	variants, err := s.listVariants(id)
	if err != nil {
		return nil, err
	}
	video.Variants = variants

	return video, nil
}

func (s *Store) List() ([]*domain.Video, error) {
	rows, err := s.db.Query(`SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*domain.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, v := range videos {
		variants, err := s.listVariants(v.ID)
		if err != nil {
			return nil, err
		}
		v.Variants = variants
	}

	return videos, nil
}

func (s *Store) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus advances the conversion status. The guard on the current
// status makes terminal states sticky: a late or duplicate update against a
// completed or failed video changes nothing.
func (s *Store) UpdateStatus(id int64, status domain.ConversionStatus, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE videos SET status = ?, error_message = ?
		WHERE id = ? AND status NOT IN ('completed', 'failed')`,
		string(status), errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	return nil
}

func (s *Store) UpdateThumbPath(id int64, thumbPath string) error {
	_, err := s.db.Exec(`UPDATE videos SET thumb_path = ? WHERE id = ?`, thumbPath, id)
	if err != nil {
		return fmt.Errorf("update thumb path: %w", err)
	}
	return nil
}

func (s *Store) GetVariant(videoID int64, height int) (*domain.Variant, error) {
	row := s.db.QueryRow(`
		SELECT id, video_id, height, status, error_message, created_at
		FROM variants WHERE video_id = ? AND height = ?`,
		videoID, height,
	)

	var v domain.Variant
	var status string
	err := row.Scan(&v.ID, &v.VideoID, &v.Height, &status, &v.ErrorMessage, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get variant: %w", err)
	}
	v.Status = domain.VariantStatus(status)
	return &v, nil
}

func (s *Store) UpdateVariantStatus(id int64, status domain.VariantStatus, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE variants SET status = ?, error_message = ?
		WHERE id = ? AND status NOT IN ('done', 'failed')`,
		string(status), errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("update variant status: %w", err)
	}
	return nil
}

func (s *Store) listVariants(videoID int64) ([]domain.Variant, error) {
	rows, err := s.db.Query(`
		SELECT id, video_id, height, status, error_message, created_at
		FROM variants WHERE video_id = ? ORDER BY height`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var v domain.Variant
		var status string
		if err := rows.Scan(&v.ID, &v.VideoID, &v.Height, &status, &v.ErrorMessage, &v.CreatedAt); err != nil {
			return nil, err
		}
		v.Status = domain.VariantStatus(status)
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*domain.Video, error) {
	var v domain.Video
	var status string
	var createdAt time.Time
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Category, &v.SourcePath,
		&v.ThumbPath, &status, &v.ErrorMessage, &createdAt)
	if err != nil {
		return nil, err
	}
	v.Status = domain.ConversionStatus(status)
	v.CreatedAt = createdAt
	return &v, nil
}

var _ port.VideoStore = (*Store)(nil)
