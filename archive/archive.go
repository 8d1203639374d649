// Package archive keeps a Postgres copy of every sent message.
// Table structure:
//
//	message:
//		id (message id shared by both mirrored copies)
//		from_id, to_id, text
//		sent_at
//		archived_at
//		status (empty when all mirrored writes succeeded)
package archive

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/klipach/dapper/contract"
)

const dbDriver = "postgres"

const schema = `
CREATE TABLE IF NOT EXISTS message (
	id TEXT PRIMARY KEY,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	text TEXT NOT NULL,
	sent_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS message_conversation_idx ON message (from_id, to_id, sent_at);`

const insertMessage = `
INSERT INTO message (id, from_id, to_id, text, sent_at, archived_at, status)
VALUES (:id, :from_id, :to_id, :text, :sent_at, :archived_at, :status)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, archived_at = EXCLUDED.archived_at`

const selectConversation = `
SELECT id, from_id, to_id, text, sent_at, archived_at, status FROM message
WHERE (from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1)
ORDER BY sent_at`

// Row is one archived message.
type Row struct {
	ID         string    `db:"id"`
	FromID     string    `db:"from_id"`
	ToID       string    `db:"to_id"`
	Text       string    `db:"text"`
	SentAt     time.Time `db:"sent_at"`
	ArchivedAt time.Time `db:"archived_at"`
	Status     string    `db:"status"`
}

type Archive struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to databaseURL and creates the table if needed.
func Open(ctx context.Context, databaseURL string) (*Archive, error) {
	db, err := sqlx.ConnectContext(ctx, dbDriver, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

func New(db *sqlx.DB) *Archive {
	return &Archive{db: db, now: time.Now}
}

// Store records msg with the status of its send.
func (a *Archive) Store(ctx context.Context, msg contract.Message, status string) error {
	_, err := a.db.NamedExecContext(ctx, insertMessage, a.row(msg, status))
	return err
}

// Conversation returns the archived messages between two users, oldest first.
func (a *Archive) Conversation(ctx context.Context, uid, partnerID string) ([]Row, error) {
	var rows []Row
	if err := a.db.SelectContext(ctx, &rows, selectConversation, uid, partnerID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) row(msg contract.Message, status string) Row {
	return Row{
		ID:         msg.ID,
		FromID:     msg.FromID,
		ToID:       msg.ToID,
		Text:       msg.Text,
		SentAt:     msg.Timestamp,
		ArchivedAt: a.now(),
		Status:     status,
	}
}
