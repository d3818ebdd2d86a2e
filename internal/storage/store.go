// Package storage persists Chats and Messages, the collaborator data model
// the routing core consumes but neither creates nor owns: a Chat owns an
// ordered sequence of Messages, each optionally recording the model used
// and the semantic route predicted for it.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	gwerrors "routegate/internal/errors"
	"routegate/internal/logging"
)

// Message is one turn in a Chat.
type Message struct {
	ID                string
	ChatID            string
	Role              string // "system" | "user" | "assistant"
	Content           string
	SentAt            time.Time
	ModelUsed         string            // empty if not applicable (e.g. the user turn)
	PredictedSemantic string            // empty if the semantic classifier didn't fire
	Metadata          map[string]string // upstream hidden params, opaque to this package
}

// Chat owns an ordered sequence of Messages plus an optional knowledge-base
// index path when a RAG context was attached at creation time.
type Chat struct {
	ID                     string
	Name                   string
	StartedAt              time.Time
	KnowledgeBaseIndexPath string
	Messages               []Message
}

// Store persists Chats and Messages to a local SQLite database. It owns no
// routing state; the Completion Driver never depends on it directly.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures its
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to open chat store")
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			kb_index_path TEXT DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at DATETIME NOT NULL,
			model_used TEXT DEFAULT '',
			predicted_semantic TEXT DEFAULT '',
			metadata TEXT DEFAULT '{}',
			FOREIGN KEY (chat_id) REFERENCES chats (id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages (chat_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sent_at ON messages (sent_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return gwerrors.NewInternalError(err, "failed to migrate chat store schema")
		}
	}
	return nil
}

// CreateChat inserts a new chat under a freshly generated ID.
func (s *Store) CreateChat(name, kbIndexPath string) (*Chat, error) {
	chat := &Chat{
		ID:                     uuid.NewString(),
		Name:                   name,
		StartedAt:              time.Now().UTC(),
		KnowledgeBaseIndexPath: kbIndexPath,
	}
	_, err := s.db.Exec(
		`INSERT INTO chats (id, name, started_at, kb_index_path) VALUES (?, ?, ?, ?)`,
		chat.ID, chat.Name, chat.StartedAt, chat.KnowledgeBaseIndexPath,
	)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to create chat")
	}
	logging.StorageLogger.Info("created chat %s (%s)", chat.ID, chat.Name)
	return chat, nil
}

// ListChats returns every chat in reverse-chronological order, without
// their messages (callers needing message previews should call GetChat).
func (s *Store) ListChats() ([]Chat, error) {
	rows, err := s.db.Query(`SELECT id, name, started_at, kb_index_path FROM chats ORDER BY started_at DESC`)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to list chats")
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.StartedAt, &c.KnowledgeBaseIndexPath); err != nil {
			return nil, gwerrors.NewInternalError(err, "failed to scan chat row")
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns one chat with its full, chronologically ordered message
// history, or a not-found error if id doesn't exist.
func (s *Store) GetChat(id string) (*Chat, error) {
	var c Chat
	row := s.db.QueryRow(`SELECT id, name, started_at, kb_index_path FROM chats WHERE id = ?`, id)
	if err := row.Scan(&c.ID, &c.Name, &c.StartedAt, &c.KnowledgeBaseIndexPath); err != nil {
		if err == sql.ErrNoRows {
			return nil, gwerrors.NewValidationError(err, fmt.Sprintf("chat %s not found", id))
		}
		return nil, gwerrors.NewInternalError(err, "failed to load chat")
	}

	msgs, err := s.listMessages(id)
	if err != nil {
		return nil, err
	}
	c.Messages = msgs
	return &c, nil
}

func (s *Store) listMessages(chatID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, role, content, sent_at, model_used, predicted_semantic, metadata
		 FROM messages WHERE chat_id = ? ORDER BY sent_at ASC`, chatID)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to list messages")
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var metaJSON string
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.SentAt, &m.ModelUsed, &m.PredictedSemantic, &metaJSON); err != nil {
			return nil, gwerrors.NewInternalError(err, "failed to scan message row")
		}
		m.Metadata = map[string]string{}
		_ = json.Unmarshal([]byte(metaJSON), &m.Metadata)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// LastMessages returns up to n most recent messages of chatID in
// chronological order, used to seed retrieval-augmented completion with
// recent conversation history.
func (s *Store) LastMessages(chatID string, n int) ([]Message, error) {
	all, err := s.listMessages(chatID)
	if err != nil {
		return nil, err
	}
	if len(all) <= n {
		return all, nil
	}
	return all[len(all)-n:], nil
}

// AddMessage appends a message to chatID.
func (s *Store) AddMessage(m Message) (*Message, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}
	if m.Metadata == nil {
		m.Metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to marshal message metadata")
	}

	_, err = s.db.Exec(
		`INSERT INTO messages (id, chat_id, role, content, sent_at, model_used, predicted_semantic, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ChatID, m.Role, m.Content, m.SentAt, m.ModelUsed, m.PredictedSemantic, string(metaJSON),
	)
	if err != nil {
		return nil, gwerrors.NewInternalError(err, "failed to add message")
	}
	return &m, nil
}
