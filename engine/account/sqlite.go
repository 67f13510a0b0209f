package account

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/WessleyAI/career-agent/engine/account/migrations"
)

// SQLite is the default Store, a single database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("account: create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("account: open database: %w", err)
	}
	s := &SQLite{db: db, now: time.Now}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("account: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate(fsys embed.FS) error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return err
	}
	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return err
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations(version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record %s: %w", name, err)
		}
	}
	return nil
}

const userColumns = "id, email, name, hashed_password, provider, provider_id, avatar_url, role, is_active, created_at, updated_at"

func (s *SQLite) CreateUser(ctx context.Context, u *User) error {
	now := s.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, "INSERT INTO users("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.Email, u.Name, nullable(u.HashedPassword), string(u.Provider), nullable(u.ProviderID),
		nullable(u.AvatarURL), u.Role, u.IsActive, u.CreatedAt.Format(time.RFC3339Nano), u.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return ErrEmailTaken
		}
		return fmt.Errorf("account: create user: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateUser(ctx context.Context, u *User) error {
	u.UpdatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE users SET email = ?, name = ?, hashed_password = ?, provider = ?,
		provider_id = ?, avatar_url = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.Name, nullable(u.HashedPassword), string(u.Provider), nullable(u.ProviderID),
		nullable(u.AvatarURL), u.Role, u.IsActive, u.UpdatedAt.Format(time.RFC3339Nano), u.ID)
	if err != nil {
		return fmt.Errorf("account: update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLite) UserByID(ctx context.Context, id string) (*User, error) {
	return s.userWhere(ctx, "id = ?", id)
}

func (s *SQLite) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.userWhere(ctx, "email = ?", email)
}

func (s *SQLite) UserByProvider(ctx context.Context, provider Provider, providerID string) (*User, error) {
	return s.userWhere(ctx, "provider = ? AND provider_id = ?", string(provider), providerID)
}

func (s *SQLite) userWhere(ctx context.Context, where string, args ...any) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...)

	var (
		u                             User
		hashed, providerID, avatarURL sql.NullString
		provider, created, updated    string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &hashed, &provider, &providerID, &avatarURL, &u.Role, &u.IsActive, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: load user: %w", err)
	}
	u.HashedPassword = hashed.String
	u.ProviderID = providerID.String
	u.AvatarURL = avatarURL.String
	u.Provider = Provider(provider)
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &u, nil
}

func (s *SQLite) AddOwnership(ctx context.Context, userID, resumeID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_resumes(user_id, resume_id, created_at) VALUES (?, ?, ?)",
		userID, resumeID, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("account: add ownership: %w", err)
	}
	return nil
}

func (s *SQLite) Owns(ctx context.Context, userID, resumeID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM user_resumes WHERE user_id = ? AND resume_id = ?", userID, resumeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("account: check ownership: %w", err)
	}
	return true, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
