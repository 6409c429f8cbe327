// Package eventlog implements the append-only session event log (spec
// §4.B): every tool call, file edit, and user/assistant turn is appended
// here before anything derives memories from it. Large payloads spill to
// the blob pool; everything else is stored inline.
package eventlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/franalgaba/alexandria/internal/alexandriaerr"
	"github.com/franalgaba/alexandria/internal/ids"
	"github.com/franalgaba/alexandria/internal/logging"
	"github.com/franalgaba/alexandria/internal/store"
)

// EventType enumerates the recognised event kinds (spec §3).
type EventType string

const (
	EventToolCall   EventType = "tool_call"
	EventFileEdit   EventType = "file_edit"
	EventUserTurn   EventType = "user_turn"
	EventAssistant  EventType = "assistant_turn"
	EventError      EventType = "error"
	EventTestResult EventType = "test_result"
	EventCommand    EventType = "command"
)

func ValidEventType(t EventType) bool {
	switch t {
	case EventToolCall, EventFileEdit, EventUserTurn, EventAssistant, EventError, EventTestResult, EventCommand:
		return true
	}
	return false
}

// Event is one append-only log entry (spec §3).
type Event struct {
	ID          string
	SessionID   string
	Timestamp   time.Time
	EventType   EventType
	Content     string // inline content, empty when spilled to a blob
	BlobID      string // set when Content spilled
	ToolName    string
	FilePath    string
	ExitCode    *int
	ContentHash string
	TokenCount  int
}

// defaultInlineThreshold is the default byte length above which content
// spills to the blob pool instead of the inline events.content column
// (spec §4.B, overridable via config.StoreConfig.InlineThresholdBytes).
const defaultInlineThreshold = 4096

// Log is the append-only event log, backed by the storage kernel.
type Log struct {
	db              *store.DB
	inlineThreshold int
}

// New constructs a Log. inlineThreshold<=0 uses the default (4096 bytes).
func New(db *store.DB, inlineThreshold int) *Log {
	if inlineThreshold <= 0 {
		inlineThreshold = defaultInlineThreshold
	}
	return &Log{db: db, inlineThreshold: inlineThreshold}
}

// AppendInput is the caller-supplied subset of fields for a new event.
type AppendInput struct {
	SessionID string
	EventType EventType
	Content   string
	ToolName  string
	FilePath  string
	ExitCode  *int
	Timestamp time.Time // zero means now
}

// Append writes one event, spilling Content to the blob pool when it
// exceeds the inline threshold (spec §4.B).
func (l *Log) Append(ctx context.Context, in AppendInput) (*Event, error) {
	timer := logging.StartTimer(logging.CategoryEventLog, "Append")
	defer timer.Stop()

	if !ValidEventType(in.EventType) {
		return nil, alexandriaerr.New(alexandriaerr.KindInvalidEnum, fmt.Sprintf("unknown event type %q", in.EventType))
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	ev := Event{
		ID:          ids.New(),
		SessionID:   in.SessionID,
		Timestamp:   in.Timestamp,
		EventType:   in.EventType,
		ToolName:    in.ToolName,
		FilePath:    in.FilePath,
		ExitCode:    in.ExitCode,
		ContentHash: contentHash(in.Content),
		TokenCount:  estimateTokens(in.Content),
	}

	var blobID sql.NullString
	inlineContent := sql.NullString{String: in.Content, Valid: true}
	if len(in.Content) > l.inlineThreshold {
		id := ids.New()
		if _, err := l.db.Conn().ExecContext(ctx,
			"INSERT INTO blobs (id, content, byte_length) VALUES (?, ?, ?)",
			id, []byte(in.Content), len(in.Content)); err != nil {
			return nil, fmt.Errorf("eventlog: blob spill failed: %w", err)
		}
		ev.BlobID = id
		blobID = sql.NullString{String: id, Valid: true}
		inlineContent = sql.NullString{Valid: false}
	} else {
		ev.Content = in.Content
	}

	if _, err := l.db.Conn().ExecContext(ctx, `
		INSERT INTO events (id, session_id, timestamp, event_type, content, blob_id, tool_name, file_path, exit_code, content_hash, token_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.Timestamp, string(ev.EventType), inlineContent, blobID, ev.ToolName, ev.FilePath, ev.ExitCode, ev.ContentHash, ev.TokenCount); err != nil {
		return nil, fmt.Errorf("eventlog: append failed: %w", err)
	}

	if _, err := l.db.Conn().ExecContext(ctx, `
		UPDATE sessions SET event_count = event_count + 1, events_since_checkpoint = events_since_checkpoint + 1 WHERE id = ?`,
		ev.SessionID); err != nil {
		logging.Get(logging.CategoryEventLog).Warn("failed to bump session counters for %s: %v", ev.SessionID, err)
	}

	return &ev, nil
}

// Content returns ev's full content, resolving a blob reference if needed.
func (l *Log) Content(ctx context.Context, ev Event) (string, error) {
	if ev.BlobID == "" {
		return ev.Content, nil
	}
	var blob []byte
	if err := l.db.Conn().QueryRowContext(ctx, "SELECT content FROM blobs WHERE id = ?", ev.BlobID).Scan(&blob); err != nil {
		return "", fmt.Errorf("eventlog: blob fetch failed: %w", err)
	}
	return string(blob), nil
}

// BySession returns every event for sessionID ordered by timestamp.
func (l *Log) BySession(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := l.db.Conn().QueryContext(ctx, `
		SELECT id, session_id, timestamp, event_type, COALESCE(content, ''), COALESCE(blob_id, ''), tool_name, file_path, exit_code, content_hash, token_count
		FROM events WHERE session_id = ? ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("eventlog: query by session failed: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ByType returns every event of the given type across all sessions,
// newest first, bounded by limit (0 = unbounded).
func (l *Log) ByType(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	q := `
		SELECT id, session_id, timestamp, event_type, COALESCE(content, ''), COALESCE(blob_id, ''), tool_name, file_path, exit_code, content_hash, token_count
		FROM events WHERE event_type = ? ORDER BY timestamp DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := l.db.Conn().QueryContext(ctx, q, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("eventlog: query by type failed: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ExistsByHash reports whether an event with this content hash already
// exists in sessionID, used by extractors to skip duplicate processing.
func (l *Log) ExistsByHash(ctx context.Context, sessionID, hash string) (bool, error) {
	var count int
	err := l.db.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE session_id = ? AND content_hash = ?", sessionID, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("eventlog: exists-by-hash failed: %w", err)
	}
	return count > 0, nil
}

// Count returns the total number of events in sessionID.
func (l *Log) Count(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := l.db.Conn().QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("eventlog: count failed: %w", err)
	}
	return count, nil
}

// CollectUnreferencedBlobs deletes blobs no longer referenced by any event
// (spec §4.B "Blob pool": garbage collection is a maintenance operation,
// never run on the hot append path). Returns the number of blobs removed.
func (l *Log) CollectUnreferencedBlobs(ctx context.Context) (int, error) {
	res, err := l.db.Conn().ExecContext(ctx, `
		DELETE FROM blobs WHERE id NOT IN (SELECT blob_id FROM events WHERE blob_id IS NOT NULL)`)
	if err != nil {
		return 0, fmt.Errorf("eventlog: blob gc failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var ev Event
		var eventType string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Timestamp, &eventType, &ev.Content, &ev.BlobID, &ev.ToolName, &ev.FilePath, &ev.ExitCode, &ev.ContentHash, &ev.TokenCount); err != nil {
			continue
		}
		ev.EventType = EventType(eventType)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// contentHash is a content-addressed fingerprint used for dedup (spec §4.B
// "contentHash") and for the extractor's idempotency invariant (spec §8
// item 7).
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// estimateTokens is the cheap ceil(chars/4) heuristic the spec specifies in
// place of a real tokenizer (spec §4.B "tokenCount").
func estimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return int(math.Ceil(float64(len(content)) / 4.0))
}
