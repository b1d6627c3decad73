package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"study-bot/api/internal/assistant"
)

// Open подключается к Postgres и проверяет соединение.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	// журнал пишет по строке на ответ модели, большой пул не нужен
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

// JournalRepo — журнал обращений к модели. Состояние сессий здесь не хранится.
type JournalRepo struct{ DB *sql.DB }

func NewJournalRepo(db *sql.DB) *JournalRepo { return &JournalRepo{DB: db} }

func (r *JournalRepo) EnsureSchema(ctx context.Context) error {
	stmts := []string{`
create table if not exists dispatch_log (
  request_id  text primary key,
  created_at  timestamptz not null,
  chat_id     bigint not null,
  mode        text not null,
  capability  text not null,
  model       text not null,
  ok          boolean not null,
  error       text,
  latency_ms  bigint not null
)`,
		`create index if not exists dispatch_log_chat_idx on dispatch_log (chat_id, created_at desc)`,
	}
	for _, q := range stmts {
		if _, err := r.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (r *JournalRepo) Record(ctx context.Context, e assistant.Entry) error {
	const q = `
insert into dispatch_log (request_id, created_at, chat_id, mode, capability, model, ok, error, latency_ms)
values ($1,$2,$3,$4,$5,$6,$7,nullif($8,''),$9)
on conflict (request_id) do nothing`
	_, err := r.DB.ExecContext(ctx, q,
		e.RequestID, e.CreatedAt, e.ChatID, e.Mode.String(), e.Capability.String(),
		e.Model, e.OK, e.Error, e.Latency.Milliseconds(),
	)
	return err
}

// SafeDSNSummary — DSN для логов, без пароля.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}

var _ assistant.Journal = (*JournalRepo)(nil)
