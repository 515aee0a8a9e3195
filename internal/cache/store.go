package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"pressline/internal/config"
)

// Store manages content cache persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the cache database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.CacheDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ioError("open sqlite db", err)
	}

	// synchronous=FULL: every write must be durable before the calling
	// stage is allowed to proceed, so a killed run never re-observes a
	// partially written entry.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, ioError(fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the backing database file.
func (s *Store) Path() string {
	return s.path
}

// Get fetches an entry by fingerprint. Returns (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM content_entries WHERE fingerprint = ?`, fingerprint)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ioError("get entry", err)
	}
	return entry, nil
}

// Put atomically overwrites (or creates) an entry. Prefer Advance for stage
// transitions; Put exists for administrative repair and tests.
func (s *Store) Put(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO content_entries (
            fingerprint, topic, stage, title, article_body, media_json,
            remote_post_id, attempt_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(fingerprint) DO UPDATE SET
            topic = excluded.topic, stage = excluded.stage, title = excluded.title,
            article_body = excluded.article_body, media_json = excluded.media_json,
            remote_post_id = excluded.remote_post_id, attempt_count = excluded.attempt_count,
            updated_at = excluded.updated_at`,
		entry.Fingerprint,
		entry.Topic,
		string(entry.Stage),
		nullableString(entry.Title),
		nullableString(entry.ArticleBody),
		nullableString(entry.MediaJSON),
		entry.RemotePostID,
		entry.AttemptCount,
		entry.CreatedAt.Format(time.RFC3339Nano),
		entry.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ioError("put entry", err)
	}
	return nil
}

// Advance moves a fingerprint strictly forward to newStage. The mutate
// callback receives the current entry (a fresh one when absent) and applies
// the stage's output fields. The read-compare-write runs in one transaction
// per key, so a slow retry can never clobber newer work: any advance that is
// not strictly forward fails with ErrStaleStage and leaves the row untouched.
func (s *Store) Advance(ctx context.Context, fingerprint string, newStage Stage, mutate func(*Entry)) (*Entry, error) {
	if _, ok := ParseStage(string(newStage)); !ok {
		return nil, fmt.Errorf("unknown stage %q", newStage)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ioError("begin advance tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM content_entries WHERE fingerprint = ?`, fingerprint)
	entry, err := scanEntry(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC()
		entry = &Entry{Fingerprint: fingerprint, CreatedAt: now}
	case err != nil:
		return nil, ioError("read entry for advance", err)
	}

	if !newStage.After(entry.Stage) {
		return nil, staleStageError(fingerprint, entry.Stage, newStage)
	}

	if mutate != nil {
		mutate(entry)
	}
	entry.Fingerprint = fingerprint
	entry.Stage = newStage
	entry.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO content_entries (
            fingerprint, topic, stage, title, article_body, media_json,
            remote_post_id, attempt_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(fingerprint) DO UPDATE SET
            topic = excluded.topic, stage = excluded.stage, title = excluded.title,
            article_body = excluded.article_body, media_json = excluded.media_json,
            remote_post_id = excluded.remote_post_id, attempt_count = excluded.attempt_count,
            updated_at = excluded.updated_at`,
		entry.Fingerprint,
		entry.Topic,
		string(entry.Stage),
		nullableString(entry.Title),
		nullableString(entry.ArticleBody),
		nullableString(entry.MediaJSON),
		entry.RemotePostID,
		entry.AttemptCount,
		entry.CreatedAt.Format(time.RFC3339Nano),
		entry.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, ioError("write advanced entry", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, ioError("commit advance", err)
	}
	return entry, nil
}

// List returns entries filtered by stage set (or all entries when no stage is
// provided), oldest first.
func (s *Store) List(ctx context.Context, stages ...Stage) ([]*Entry, error) {
	baseQuery := `SELECT ` + entryColumns + ` FROM content_entries`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, stage := range stages {
			args[i] = string(stage)
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE stage IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, ioError("list entries", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, ioError("scan entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, ioError("iterate entries", err)
	}
	return entries, nil
}

// Stats returns a count of entries grouped by stage.
func (s *Store) Stats(ctx context.Context) (StatsSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(1) FROM content_entries GROUP BY stage`)
	if err != nil {
		return StatsSummary{}, ioError("cache stats", err)
	}
	defer rows.Close()

	summary := StatsSummary{}
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return StatsSummary{}, ioError("scan stats", err)
		}
		summary.Total += count
		switch Stage(stage) {
		case StageGenerated:
			summary.Generated += count
		case StageMediaResolved:
			summary.MediaResolved += count
		case StagePublished:
			summary.Published += count
		}
	}
	if err := rows.Err(); err != nil {
		return StatsSummary{}, ioError("iterate stats", err)
	}
	return summary, nil
}

// Remove deletes an entry by fingerprint.
func (s *Store) Remove(ctx context.Context, fingerprint string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_entries WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return false, ioError("delete entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, ioError("rows affected", err)
	}
	return affected > 0, nil
}

// ResetPartial removes entries that never reached publication, forcing those
// topics to regenerate on the next run. Published entries are kept so
// idempotence survives.
func (s *Store) ResetPartial(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_entries WHERE stage != ?`, string(StagePublished))
	if err != nil {
		return 0, ioError("reset partial entries", err)
	}
	return res.RowsAffected()
}

// Clear removes all entries from the cache.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_entries`)
	if err != nil {
		return 0, ioError("clear cache", err)
	}
	return res.RowsAffected()
}

const entryColumns = "fingerprint, topic, stage, title, article_body, media_json, remote_post_id, attempt_count, created_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		fingerprint  string
		topicVal     string
		stageStr     string
		title        sql.NullString
		articleBody  sql.NullString
		mediaJSON    sql.NullString
		remotePostID int64
		attemptCount int
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&fingerprint,
		&topicVal,
		&stageStr,
		&title,
		&articleBody,
		&mediaJSON,
		&remotePostID,
		&attemptCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		Fingerprint:  fingerprint,
		Topic:        topicVal,
		Stage:        Stage(stageStr),
		Title:        title.String,
		ArticleBody:  articleBody.String,
		MediaJSON:    mediaJSON.String,
		RemotePostID: remotePostID,
		AttemptCount: attemptCount,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
