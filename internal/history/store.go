// Package history 周期历史落库（sqlite）。
//
// 每轮对冲结束（无论成败）写一条记录，供离线复盘。
// 精确小数一律以 TEXT 存储，读回时再解析，避免浮点截断。
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// CycleRecord 一轮对冲的结果
type CycleRecord struct {
	ID           int64
	Ticker       string
	MakerVenue   string
	HedgeVenue   string
	MakerSide    string
	Quantity     decimal.Decimal
	MakerEntry   decimal.Decimal
	HedgeEntry   decimal.Decimal
	MakerExit    decimal.Decimal
	HedgeExit    decimal.Decimal
	PnL          decimal.Decimal
	ExitReason   string // hold_time / stop_loss / take_profit / shutdown / failed
	Emergency    bool
	ErrorMessage string
	OpenedAt     time.Time
	ClosedAt     time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS hedge_cycles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ticker        TEXT NOT NULL,
	maker_venue   TEXT NOT NULL,
	hedge_venue   TEXT NOT NULL,
	maker_side    TEXT NOT NULL,
	quantity      TEXT NOT NULL,
	maker_entry   TEXT NOT NULL,
	hedge_entry   TEXT NOT NULL,
	maker_exit    TEXT NOT NULL DEFAULT '0',
	hedge_exit    TEXT NOT NULL DEFAULT '0',
	pnl           TEXT NOT NULL,
	exit_reason   TEXT NOT NULL,
	emergency     INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	opened_at     INTEGER NOT NULL,
	closed_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hedge_cycles_closed_at ON hedge_cycles(closed_at);
`

// Store sqlite 周期历史存储
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）历史库
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "history: 创建目录失败")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "history: 打开数据库失败")
	}
	// modernc sqlite 串行写，单连接避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "history: 初始化表失败")
	}
	return &Store{db: db}, nil
}

// Insert 写入一条周期记录
func (s *Store) Insert(ctx context.Context, r *CycleRecord) error {
	emergency := 0
	if r.Emergency {
		emergency = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO hedge_cycles
		(ticker, maker_venue, hedge_venue, maker_side, quantity, maker_entry, hedge_entry,
		 maker_exit, hedge_exit, pnl, exit_reason, emergency, error_message, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Ticker, r.MakerVenue, r.HedgeVenue, r.MakerSide,
		r.Quantity.String(), r.MakerEntry.String(), r.HedgeEntry.String(),
		r.MakerExit.String(), r.HedgeExit.String(),
		r.PnL.String(), r.ExitReason, emergency, r.ErrorMessage,
		r.OpenedAt.UnixMilli(), r.ClosedAt.UnixMilli())
	if err != nil {
		return errors.Wrap(err, "history: 写入失败")
	}
	if id, err := res.LastInsertId(); err == nil {
		r.ID = id
	}
	return nil
}

// List 按平仓时间倒序返回最近 limit 条记录
func (s *Store) List(ctx context.Context, limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, maker_venue, hedge_venue, maker_side, quantity,
		       maker_entry, hedge_entry, maker_exit, hedge_exit, pnl,
		       exit_reason, emergency, error_message, opened_at, closed_at
		FROM hedge_cycles ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "history: 查询失败")
	}
	defer rows.Close()

	var out []CycleRecord
	for rows.Next() {
		var (
			r                  CycleRecord
			qty, pnl           string
			makerEntry, hedgeEntry string
			makerExit, hedgeExit   string
			emergency          int
			openedAt, closedAt int64
		)
		if err := rows.Scan(&r.ID, &r.Ticker, &r.MakerVenue, &r.HedgeVenue, &r.MakerSide,
			&qty, &makerEntry, &hedgeEntry, &makerExit, &hedgeExit, &pnl,
			&r.ExitReason, &emergency, &r.ErrorMessage, &openedAt, &closedAt); err != nil {
			return nil, errors.Wrap(err, "history: 读取行失败")
		}
		r.Quantity, _ = decimal.NewFromString(qty)
		r.MakerEntry, _ = decimal.NewFromString(makerEntry)
		r.HedgeEntry, _ = decimal.NewFromString(hedgeEntry)
		r.MakerExit, _ = decimal.NewFromString(makerExit)
		r.HedgeExit, _ = decimal.NewFromString(hedgeExit)
		r.PnL, _ = decimal.NewFromString(pnl)
		r.Emergency = emergency != 0
		r.OpenedAt = time.UnixMilli(openedAt)
		r.ClosedAt = time.UnixMilli(closedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}
