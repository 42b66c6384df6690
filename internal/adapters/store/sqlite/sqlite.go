// Package sqlite persists meetings, profiles and chat with mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	host       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
	identity     TEXT PRIMARY KEY,
	display_name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_messages (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id   TEXT NOT NULL,
	origin_id TEXT NOT NULL,
	sender    TEXT NOT NULL,
	text      TEXT NOT NULL,
	sent_at   DATETIME NOT NULL,
	UNIQUE (room_id, origin_id)
);
CREATE INDEX IF NOT EXISTS chat_messages_room ON chat_messages (room_id, seq);
`

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "meet.db"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// one writer; also keeps ":memory:" a single database
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	log.Info().Str("module", "store.sqlite").Str("dsn", dsn).Msg("store opened")
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) CreateMeeting(ctx context.Context, name string, host domain.Identity) (*domain.Room, error) {
	room := domain.NewRoom(name, host)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO meetings (id, name, host, created_at) VALUES (?, ?, ?, ?)",
		string(room.ID), room.Name, string(room.Host), room.CreatedAt)
	if err != nil {
		if isConstraint(err) {
			return nil, domain.ErrRoomExists
		}
		return nil, fmt.Errorf("failed to insert meeting %s: %w", room.ID, err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO profiles (identity, display_name) VALUES (?, ?)",
		string(host), string(host))
	if err != nil {
		return nil, fmt.Errorf("failed to insert host profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return room, nil
}

func (s *Store) ValidateMeeting(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var room domain.Room
	var host string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, host, created_at FROM meetings WHERE id = ?", string(id)).
		Scan((*string)(&room.ID), &room.Name, &host, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("error querying meeting: %w", err)
	}
	room.Host = domain.Identity(host)
	return &room, nil
}

func (s *Store) GetHost(ctx context.Context, id domain.RoomID) (domain.Identity, error) {
	room, err := s.ValidateMeeting(ctx, id)
	if err != nil {
		return "", err
	}
	return room.Host, nil
}

func (s *Store) GetProfile(ctx context.Context, id domain.Identity) (domain.Profile, error) {
	p := domain.Profile{Identity: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT display_name FROM profiles WHERE identity = ?", string(id)).Scan(&p.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Profile{}, domain.ErrProfileNotFound
		}
		return domain.Profile{}, fmt.Errorf("error querying profile: %w", err)
	}
	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (identity, display_name) VALUES (?, ?)
		 ON CONFLICT (identity) DO UPDATE SET display_name = excluded.display_name`,
		string(p.Identity), p.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.Identity, err)
	}
	return nil
}

// AppendChat is idempotent per origin id.
func (s *Store) AppendChat(ctx context.Context, room domain.RoomID, msg domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO chat_messages (room_id, origin_id, sender, text, sent_at) VALUES (?, ?, ?, ?, ?)",
		string(room), msg.OriginID, string(msg.Sender), msg.Text, msg.SentAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}
	return nil
}

func (s *Store) ListChat(ctx context.Context, room domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT origin_id, sender, text, sent_at FROM chat_messages WHERE room_id = ? ORDER BY seq DESC LIMIT ?",
		string(room), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat for %s: %w", room, err)
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var sender string
		var sentAt time.Time
		if err := rows.Scan(&m.OriginID, &sender, &m.Text, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Sender = domain.Identity(sender)
		m.SentAt = sentAt
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat for %s: %w", room, err)
	}
	slices.Reverse(out)
	return out, nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
