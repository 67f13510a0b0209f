package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/career-agent/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j keeps users as :User nodes and ownership as
// (:User)-[:OWNS]->(:Resume) relationships.
type Neo4j struct {
	driver neo4j.DriverWithContext
	users  *repo.Neo4jRepo[*User, string]
	now    func() time.Time
}

var _ Store = (*Neo4j)(nil)

// OpenNeo4j connects, verifies connectivity and ensures the email
// uniqueness constraint.
func OpenNeo4j(ctx context.Context, url, user, pass string) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(user, pass, ""))
	if err != nil {
		return nil, fmt.Errorf("account: neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("account: neo4j connect: %w", err)
	}
	s := &Neo4j{
		driver: driver,
		users:  repo.NewNeo4jRepo[*User, string](driver, "User", userProps, userFromRecord),
		now:    time.Now,
	}
	if _, err := s.users.Exec(ctx, "CREATE CONSTRAINT user_email IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE", nil); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("account: neo4j schema: %w", err)
	}
	return s, nil
}

func (s *Neo4j) Close() error { return s.driver.Close(context.Background()) }

func (s *Neo4j) CreateUser(ctx context.Context, u *User) error {
	if _, err := s.UserByEmail(ctx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	now := s.now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if _, err := s.users.Create(ctx, u); err != nil {
		return fmt.Errorf("account: create user: %w", err)
	}
	return nil
}

func (s *Neo4j) UpdateUser(ctx context.Context, u *User) error {
	u.UpdatedAt = s.now().UTC()
	if _, err := s.users.Update(ctx, u); err != nil {
		return notFound(err)
	}
	return nil
}

func (s *Neo4j) UserByID(ctx context.Context, id string) (*User, error) {
	u, err := s.users.Get(ctx, id)
	return u, notFound(err)
}

func (s *Neo4j) UserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.users.FindBy(ctx, "email", email)
	return u, notFound(err)
}

func (s *Neo4j) UserByProvider(ctx context.Context, provider Provider, providerID string) (*User, error) {
	u, err := s.users.FindOne(ctx, map[string]any{"provider": string(provider), "provider_id": providerID})
	return u, notFound(err)
}

func (s *Neo4j) AddOwnership(ctx context.Context, userID, resumeID string) error {
	ok, err := s.users.Exec(ctx, `MATCH (u:User {id: $uid})
MERGE (r:Resume {id: $rid})
MERGE (u)-[o:OWNS]->(r)
ON CREATE SET o.created_at = $now
RETURN u.id`, map[string]any{"uid": userID, "rid": resumeID, "now": s.now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("account: add ownership: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func (s *Neo4j) Owns(ctx context.Context, userID, resumeID string) (bool, error) {
	return s.users.Exec(ctx, "MATCH (:User {id: $uid})-[:OWNS]->(:Resume {id: $rid}) RETURN 1 LIMIT 1",
		map[string]any{"uid": userID, "rid": resumeID})
}

func notFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	return nil
}

func userProps(u *User) map[string]any {
	return map[string]any{
		"id":              u.ID,
		"email":           u.Email,
		"name":            u.Name,
		"hashed_password": u.HashedPassword,
		"provider":        string(u.Provider),
		"provider_id":     u.ProviderID,
		"avatar_url":      u.AvatarURL,
		"role":            u.Role,
		"is_active":       u.IsActive,
		"created_at":      u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":      u.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func userFromRecord(rec *neo4j.Record) (*User, error) {
	v, ok := rec.Get("n")
	if !ok {
		return nil, errors.New("account: record has no node")
	}
	var props map[string]any
	switch n := v.(type) {
	case neo4j.Node:
		props = n.Props
	case map[string]any:
		props = n
	default:
		return nil, fmt.Errorf("account: unexpected record value %T", v)
	}

	str := func(k string) string {
		s, _ := props[k].(string)
		return s
	}
	u := &User{
		ID:             str("id"),
		Email:          str("email"),
		Name:           str("name"),
		HashedPassword: str("hashed_password"),
		Provider:       Provider(str("provider")),
		ProviderID:     str("provider_id"),
		AvatarURL:      str("avatar_url"),
		Role:           str("role"),
	}
	u.IsActive, _ = props["is_active"].(bool)
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, str("created_at"))
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, str("updated_at"))
	return u, nil
}
