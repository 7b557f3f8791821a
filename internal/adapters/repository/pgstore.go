package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/profilequest/internal/domain/model"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts options
}

// NewPostgresStore wraps a pool whose schema is already migrated.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, opts: defaultOptions(opts)}
}

var _ Store = (*PostgresStore)(nil)

const pgUserCols = `id, email, name, password_hash, total_xp, created_at, updated_at`

const pgQuestCols = `id, user_id, title, description, category, xp_reward, status, created_at, completed_at`

func (s *PostgresStore) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = s.opts.newID()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+pgUserCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.TotalXP, u.CreatedAt, u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return model.User{}, fmt.Errorf("%w: email %s", ErrConflict, u.Email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.user(ctx, `SELECT `+pgUserCols+` FROM users WHERE email = $1`, email)
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (model.User, error) {
	return s.user(ctx, `SELECT `+pgUserCols+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) user(ctx context.Context, query, arg string) (model.User, error) {
	u, err := scanPgUser(s.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: user %s", ErrNotFound, arg)
	}
	return u, err
}

func (s *PostgresStore) FindUsers(ctx context.Context, email, name string, limit int) ([]model.User, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgUserCols+` FROM users
		 WHERE ($1::text = '' OR email = $1) AND ($2::text = '' OR name = $2)
		 ORDER BY name, id LIMIT $3`,
		email, name, lim)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.User, error) { return scanPgUser(r) })
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpsertPersona(ctx context.Context, p model.Persona) (model.Persona, error) {
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return model.Persona{}, fmt.Errorf("encode attributes: %w", err)
	}
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := pgUserExists(ctx, tx, p.UserID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO personas (user_id, persona_type, attributes, avatar, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (user_id) DO UPDATE SET
			   persona_type = EXCLUDED.persona_type,
			   attributes   = EXCLUDED.attributes,
			   avatar       = EXCLUDED.avatar,
			   updated_at   = EXCLUDED.updated_at`,
			p.UserID, p.PersonaType, attrs, p.Avatar, p.UpdatedAt)
		return err
	})
	if err != nil {
		return model.Persona{}, err
	}
	return p, nil
}

func (s *PostgresStore) Persona(ctx context.Context, userID string) (model.Persona, error) {
	var (
		p     model.Persona
		attrs []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, persona_type, attributes, avatar, updated_at FROM personas WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.PersonaType, &attrs, &p.Avatar, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Persona{}, fmt.Errorf("%w: persona for %s", ErrNotFound, userID)
	}
	if err != nil {
		return model.Persona{}, fmt.Errorf("persona: %w", err)
	}
	if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
		return model.Persona{}, fmt.Errorf("decode attributes: %w", err)
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *PostgresStore) SaveQuests(ctx context.Context, userID string, drafts []model.QuestDraft, at time.Time) ([]model.Quest, error) {
	out := make([]model.Quest, 0, len(drafts))
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := pgUserExists(ctx, tx, userID); err != nil {
			return err
		}
		for _, d := range drafts {
			q, err := scanPgQuest(tx.QueryRow(ctx,
				`INSERT INTO quests (id, user_id, title, description, category, xp_reward, status, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT (user_id, title) DO UPDATE SET
				   description = EXCLUDED.description,
				   category    = EXCLUDED.category,
				   xp_reward   = EXCLUDED.xp_reward
				 RETURNING `+pgQuestCols,
				s.opts.newID(), userID, d.Title, d.Description, d.Category, d.XPReward, string(model.StatusAvailable), at))
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

func (s *PostgresStore) Quests(ctx context.Context, userID string, status model.QuestStatus) ([]model.Quest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgQuestCols+` FROM quests WHERE user_id = $1 AND ($2::text = '' OR status = $2) ORDER BY title`,
		userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Quest, error) { return scanPgQuest(r) })
	if err != nil {
		return nil, fmt.Errorf("list quests: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountQuests(ctx context.Context, userID string, status model.QuestStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quests WHERE user_id = $1 AND ($2::text = '' OR status = $2)`,
		userID, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count quests: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) DeleteQuest(ctx context.Context, userID, title string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM quests WHERE user_id = $1 AND title = $2`, userID, title)
	if err != nil {
		return fmt.Errorf("delete quest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quest %q", ErrNotFound, title)
	}
	return nil
}

func (s *PostgresStore) CompleteQuest(ctx context.Context, userID, title string, at time.Time) (Completion, error) {
	var c Completion
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// The user row lock serializes completions for one user.
		err := tx.QueryRow(ctx, `SELECT total_xp FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&c.PreviousTotal)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		if err != nil {
			return err
		}

		q, err := scanPgQuest(tx.QueryRow(ctx,
			`SELECT `+pgQuestCols+` FROM quests WHERE user_id = $1 AND title = $2`, userID, title))
		if errors.Is(err, pgx.ErrNoRows) {
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

		if _, err := tx.Exec(ctx,
			`UPDATE quests SET status = $1, completed_at = $2 WHERE id = $3`,
			string(model.StatusCompleted), at, q.ID); err != nil {
			return err
		}
		c.Event = model.XPEvent{ID: s.opts.newID(), UserID: userID, QuestID: q.ID, Amount: q.XPReward, At: at}
		if _, err := tx.Exec(ctx,
			`INSERT INTO xp_events (id, user_id, quest_id, amount, at) VALUES ($1, $2, $3, $4, $5)`,
			c.Event.ID, userID, q.ID, q.XPReward, at); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET total_xp = $1, updated_at = $2 WHERE id = $3`,
			c.TotalXP, at, userID); err != nil {
			return err
		}

		q.Status = model.StatusCompleted
		completedAt := at
		q.CompletedAt = &completedAt
		c.Quest = q
		return nil
	})
	if err != nil {
		return Completion{}, err
	}
	return c, nil
}

func (s *PostgresStore) XPEvents(ctx context.Context, userID string, from, to time.Time) ([]model.XPEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, quest_id, amount, at FROM xp_events
		 WHERE user_id = $1 AND at >= $2 AND at < $3 ORDER BY at, id`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("xp events: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.XPEvent, error) {
		var e model.XPEvent
		err := r.Scan(&e.ID, &e.UserID, &e.QuestID, &e.Amount, &e.At)
		e.At = e.At.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("xp events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgUser(r pgx.Row) (model.User, error) {
	var u model.User
	if err := r.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.TotalXP, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return model.User{}, err
	}
	u.CreatedAt, u.UpdatedAt = u.CreatedAt.UTC(), u.UpdatedAt.UTC()
	return u, nil
}

func scanPgQuest(r pgx.Row) (model.Quest, error) {
	var (
		q      model.Quest
		status string
	)
	if err := r.Scan(&q.ID, &q.UserID, &q.Title, &q.Description, &q.Category, &q.XPReward, &status, &q.CreatedAt, &q.CompletedAt); err != nil {
		return model.Quest{}, err
	}
	q.Status = model.QuestStatus(status)
	q.CreatedAt = q.CreatedAt.UTC()
	if q.CompletedAt != nil {
		t := q.CompletedAt.UTC()
		q.CompletedAt = &t
	}
	return q, nil
}

func pgUserExists(ctx context.Context, tx pgx.Tx, userID string) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return err
}
