// Package journal 把每次下发的操作结果写入 sqlite，作为审计记录
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/gobet-deribit/deribit/types"
)

var log = logrus.WithField("component", "journal")

// Journal sqlite 审计日志
type Journal struct {
	db *sql.DB
}

// Open 打开（必要时创建）journal 数据库；path 为 ":memory:" 时使用内存库
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS operations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  request_id TEXT NOT NULL,
  operation TEXT NOT NULL,
  path TEXT NOT NULL,
  success INTEGER NOT NULL,
  http_status INTEGER NOT NULL,
  failure_kind TEXT NOT NULL,
  body TEXT NOT NULL,
  error TEXT,
  started_at TEXT NOT NULL,
  duration_ms INTEGER NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_started_at ON operations(started_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_request_id ON operations(request_id);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close 关闭数据库
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record 写入一条操作记录
func (j *Journal) Record(ctx context.Context, rec types.Record) error {
	var errMsg *string
	if rec.Error != "" {
		v := rec.Error
		errMsg = &v
	}
	_, err := j.db.ExecContext(ctx, `
INSERT INTO operations (request_id, operation, path, success, http_status, failure_kind, body, error, started_at, duration_ms)
VALUES (?,?,?,?,?,?,?,?,?,?)
`, rec.RequestID, rec.Operation.String(), rec.Path, boolToInt(rec.Success), rec.HTTPStatus, string(rec.Kind),
		rec.Body, errMsg, rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.Duration.Milliseconds())
	if err != nil {
		log.Warnf("写入 journal 失败: request_id=%s err=%v", rec.RequestID, err)
		return err
	}
	return nil
}

// Recent 按开始时间倒序返回最近的记录
func (j *Journal) Recent(ctx context.Context, limit int) ([]types.Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT request_id, operation, path, success, http_status, failure_kind, body, error, started_at, duration_ms
FROM operations
ORDER BY started_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Record
	for rows.Next() {
		var (
			rec        types.Record
			operation  string
			success    int64
			kind       string
			errStr     sql.NullString
			startedAt  string
			durationMs int64
		)
		if err := rows.Scan(&rec.RequestID, &operation, &rec.Path, &success, &rec.HTTPStatus, &kind,
			&rec.Body, &errStr, &startedAt, &durationMs); err != nil {
			return nil, err
		}
		rec.Operation = types.ParseOperation(operation)
		rec.Success = success != 0
		rec.Kind = types.FailureKind(kind)
		if errStr.Valid {
			rec.Error = errStr.String
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountFailures 统计各失败类别的数量（不含成功记录）
func (j *Journal) CountFailures(ctx context.Context) (map[types.FailureKind]int, error) {
	rows, err := j.db.QueryContext(ctx, `
SELECT failure_kind, COUNT(*) FROM operations WHERE success = 0 GROUP BY failure_kind
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.FailureKind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[types.FailureKind(kind)] = n
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
