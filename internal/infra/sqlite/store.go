package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bms-gateway/internal/protocol/dalybms"
	"bms-gateway/internal/usecase"
)

// DefaultListLimit ListFrames 未指定 limit 时的返回条数
const DefaultListLimit = 100

// Store 基于 SQLite 的帧存储
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ usecase.FrameStore = (*Store)(nil)

// NewStore 打开 (必要时创建) 数据库文件。":memory:" 表示内存库。
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// 内存库每个连接都是独立的数据库
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS frames (
		id TEXT PRIMARY KEY,
		device_id TEXT NOT NULL,
		received_at INTEGER NOT NULL,
		recorded_at INTEGER,
		recommendation TEXT NOT NULL,
		truncated INTEGER NOT NULL DEFAULT 0,
		frame_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_frames_device_received ON frames(device_id, received_at);
	CREATE INDEX IF NOT EXISTS idx_frames_received ON frames(received_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveFrame 写入一条记录, 帧内容以 JSON 原样保存
func (s *Store) SaveFrame(ctx context.Context, rec *usecase.FrameRecord) error {
	body, err := json.Marshal(rec.Frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	var recordedAt sql.NullInt64
	if rec.RecordedAt != nil {
		recordedAt = sql.NullInt64{Int64: rec.RecordedAt.UnixNano(), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frames (id, device_id, received_at, recorded_at, recommendation, truncated, frame_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.DeviceID, rec.ReceivedAt.UnixNano(), recordedAt, rec.Recommendation, rec.Truncated, string(body))
	return err
}

// GetFrame 按 id 读取, 不存在时返回 usecase.ErrFrameNotFound
func (s *Store) GetFrame(ctx context.Context, id string) (*usecase.FrameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_id, received_at, recorded_at, recommendation, truncated, frame_json
		FROM frames WHERE id = ?
	`, id)

	rec, err := scanFrame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrFrameNotFound
	}
	return rec, err
}

// ListFrames 按接收时间倒序列出, deviceID 为空时不过滤
func (s *Store) ListFrames(ctx context.Context, deviceID string, limit int) ([]*usecase.FrameRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, device_id, received_at, recorded_at, recommendation, truncated, frame_json
		FROM frames`
	args := []interface{}{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY received_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*usecase.FrameRecord{}
	for rows.Next() {
		rec, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFrame(row rowScanner) (*usecase.FrameRecord, error) {
	var (
		rec        usecase.FrameRecord
		receivedAt int64
		recordedAt sql.NullInt64
		body       string
	)
	if err := row.Scan(&rec.ID, &rec.DeviceID, &receivedAt, &recordedAt,
		&rec.Recommendation, &rec.Truncated, &body); err != nil {
		return nil, err
	}

	rec.ReceivedAt = time.Unix(0, receivedAt).UTC()
	if recordedAt.Valid {
		t := time.Unix(0, recordedAt.Int64)
		rec.RecordedAt = &t
	}

	var frame dalybms.ParsedFrame
	if err := json.Unmarshal([]byte(body), &frame); err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", rec.ID, err)
	}
	rec.Frame = &frame
	return &rec, nil
}
