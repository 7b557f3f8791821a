package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/profilequest/internal/domain/model"
)

// SQLiteStore implements Store on database/sql over modernc.org/sqlite.
// Timestamps are stored as unix microseconds.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

// NewSQLiteStore wraps an open, migrated database.
func NewSQLiteStore(db *sql.DB, opts ...Option) *SQLiteStore {
	return &SQLiteStore{db: db, opts: defaultOptions(opts)}
}

var _ Store = (*SQLiteStore)(nil)

const sqliteUserCols = `id, email, name, password_hash, total_xp, created_at, updated_at`

const sqliteQuestCols = `id, user_id, title, description, category, xp_reward, status, created_at, completed_at`

func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = s.opts.newID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+sqliteUserCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.TotalXP, toMicros(u.CreatedAt), toMicros(u.UpdatedAt))
	if isSQLiteUnique(err) {
		return model.User{}, fmt.Errorf("%w: email %s", ErrConflict, u.Email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.user(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) UserByID(ctx context.Context, id string) (model.User, error) {
	return s.user(ctx, `SELECT `+sqliteUserCols+` FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) user(ctx context.Context, query, arg string) (model.User, error) {
	u, err := scanSQLiteUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: user %s", ErrNotFound, arg)
	}
	return u, err
}

func (s *SQLiteStore) FindUsers(ctx context.Context, email, name string, limit int) ([]model.User, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteUserCols+` FROM users
		 WHERE (? = '' OR email = ?) AND (? = '' OR name = ?)
		 ORDER BY name, id LIMIT ?`,
		email, email, name, name, limit)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertPersona(ctx context.Context, p model.Persona) (model.Persona, error) {
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return model.Persona{}, fmt.Errorf("encode attributes: %w", err)
	}
	err = withSQLTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := sqliteUserExists(ctx, tx, p.UserID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO personas (user_id, persona_type, attributes, avatar, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET
			   persona_type = excluded.persona_type,
			   attributes   = excluded.attributes,
			   avatar       = excluded.avatar,
			   updated_at   = excluded.updated_at`,
			p.UserID, p.PersonaType, string(attrs), p.Avatar, toMicros(p.UpdatedAt))
		return err
	})
	if err != nil {
		return model.Persona{}, err
	}
	return p, nil
}

func (s *SQLiteStore) Persona(ctx context.Context, userID string) (model.Persona, error) {
	var (
		p       model.Persona
		attrs   string
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, persona_type, attributes, avatar, updated_at FROM personas WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.PersonaType, &attrs, &p.Avatar, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Persona{}, fmt.Errorf("%w: persona for %s", ErrNotFound, userID)
	}
	if err != nil {
		return model.Persona{}, fmt.Errorf("persona: %w", err)
	}
	if err := json.Unmarshal([]byte(attrs), &p.Attributes); err != nil {
		return model.Persona{}, fmt.Errorf("decode attributes: %w", err)
	}
	p.UpdatedAt = fromMicros(updated)
	return p, nil
}

func (s *SQLiteStore) SaveQuests(ctx context.Context, userID string, drafts []model.QuestDraft, at time.Time) ([]model.Quest, error) {
	out := make([]model.Quest, 0, len(drafts))
	err := withSQLTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := sqliteUserExists(ctx, tx, userID); err != nil {
			return err
		}
		for _, d := range drafts {
			q, err := scanSQLiteQuest(tx.QueryRowContext(ctx,
				`INSERT INTO quests (id, user_id, title, description, category, xp_reward, status, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(user_id, title) DO UPDATE SET
				   description = excluded.description,
				   category    = excluded.category,
				   xp_reward   = excluded.xp_reward
				 RETURNING `+sqliteQuestCols,
				s.opts.newID(), userID, d.Title, d.Description, d.Category, d.XPReward, string(model.StatusAvailable), toMicros(at)))
			if err != nil {
				return fmt.Errorf("save quest %q: %w", d.Title, err)
			}
			out = append(out, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) Quests(ctx context.Context, userID string, status model.QuestStatus) ([]model.Quest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteQuestCols+` FROM quests WHERE user_id = ? AND (? = '' OR status = ?) ORDER BY title`,
		userID, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	defer rows.Close()
	out := make([]model.Quest, 0)
	for rows.Next() {
		q, err := scanSQLiteQuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountQuests(ctx context.Context, userID string, status model.QuestStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quests WHERE user_id = ? AND (? = '' OR status = ?)`,
		userID, string(status), string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count quests: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) DeleteQuest(ctx context.Context, userID, title string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quests WHERE user_id = ? AND title = ?`, userID, title)
	if err != nil {
		return fmt.Errorf("delete quest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: quest %q", ErrNotFound, title)
	}
	return nil
}

func (s *SQLiteStore) CompleteQuest(ctx context.Context, userID, title string, at time.Time) (Completion, error) {
	var c Completion
	err := withSQLTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT total_xp FROM users WHERE id = ?`, userID).Scan(&c.PreviousTotal)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		if err != nil {
			return err
		}

		q, err := scanSQLiteQuest(tx.QueryRowContext(ctx,
			`SELECT `+sqliteQuestCols+` FROM quests WHERE user_id = ? AND title = ?`, userID, title))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: quest %q", ErrNotFound, title)
		}
		if err != nil {
			return err
		}
		if q.Completed() {
			return fmt.Errorf("%w: %q", ErrAlreadyCompleted, title)
		}
		if c.TotalXP, err = addXP(c.PreviousTotal, q.XPReward); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE quests SET status = ?, completed_at = ? WHERE id = ?`,
			string(model.StatusCompleted), toMicros(at), q.ID); err != nil {
			return err
		}
		c.Event = model.XPEvent{ID: s.opts.newID(), UserID: userID, QuestID: q.ID, Amount: q.XPReward, At: at}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO xp_events (id, user_id, quest_id, amount, at) VALUES (?, ?, ?, ?, ?)`,
			c.Event.ID, userID, q.ID, q.XPReward, toMicros(at)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET total_xp = ?, updated_at = ? WHERE id = ?`,
			c.TotalXP, toMicros(at), userID); err != nil {
			return err
		}

		q.Status = model.StatusCompleted
		completedAt := fromMicros(toMicros(at))
		q.CompletedAt = &completedAt
		c.Quest = q
		return nil
	})
	if err != nil {
		return Completion{}, err
	}
	return c, nil
}

func (s *SQLiteStore) XPEvents(ctx context.Context, userID string, from, to time.Time) ([]model.XPEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, quest_id, amount, at FROM xp_events
		 WHERE user_id = ? AND at >= ? AND at < ? ORDER BY at, id`,
		userID, toMicros(from), toMicros(to))
	if err != nil {
		return nil, fmt.Errorf("xp events: %w", err)
	}
	defer rows.Close()
	out := make([]model.XPEvent, 0)
	for rows.Next() {
		var (
			e  model.XPEvent
			at int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.QuestID, &e.Amount, &at); err != nil {
			return nil, err
		}
		e.At = fromMicros(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(r rowScanner) (model.User, error) {
	var (
		u                model.User
		created, updated int64
	)
	if err := r.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.TotalXP, &created, &updated); err != nil {
		return model.User{}, err
	}
	u.CreatedAt, u.UpdatedAt = fromMicros(created), fromMicros(updated)
	return u, nil
}

func scanSQLiteQuest(r rowScanner) (model.Quest, error) {
	var (
		q         model.Quest
		status    string
		created   int64
		completed sql.NullInt64
	)
	if err := r.Scan(&q.ID, &q.UserID, &q.Title, &q.Description, &q.Category, &q.XPReward, &status, &created, &completed); err != nil {
		return model.Quest{}, err
	}
	q.Status = model.QuestStatus(status)
	q.CreatedAt = fromMicros(created)
	if completed.Valid {
		t := fromMicros(completed.Int64)
		q.CompletedAt = &t
	}
	return q, nil
}

func sqliteUserExists(ctx context.Context, tx *sql.Tx, userID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return err
}

func withSQLTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func toMicros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }
