package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Neo4jRepo stores T as nodes with a single label.
type Neo4jRepo[T any, ID comparable] struct {
	driver     neo4j.DriverWithContext
	label      string
	idKey      string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
	newSession func(ctx context.Context) runner
}

type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// NewNeo4jRepo builds a repository. Every query returns the node as "n";
// fromRecord decodes that record.
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		driver:     driver,
		label:      label,
		idKey:      "id",
		toMap:      toMap,
		fromRecord: fromRecord,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (r *Neo4jRepo[T, ID]) session(ctx context.Context) runner {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &sessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	return r.one(ctx, fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n", r.label, r.idKey), map[string]any{"id": id})
}

// FindBy returns the first node whose property key equals value.
func (r *Neo4jRepo[T, ID]) FindBy(ctx context.Context, key string, value any) (T, error) {
	return r.FindOne(ctx, map[string]any{key: value})
}

// FindOne returns the first node matching every property in props.
func (r *Neo4jRepo[T, ID]) FindOne(ctx context.Context, props map[string]any) (T, error) {
	where, params := whereClause(props)
	return r.one(ctx, fmt.Sprintf("MATCH (n:%s)%s RETURN n LIMIT 1", r.label, where), params)
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	where, params := whereClause(opts.Filter)
	params["offset"] = opts.Offset
	params["limit"] = limit

	cypher := fmt.Sprintf("MATCH (n:%s)%s RETURN n SKIP $offset LIMIT $limit", r.label, where)
	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var items []T
	for res.Next(ctx) {
		item, err := r.fromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Neo4jRepo[T, ID]) Create(ctx context.Context, entity T) (T, error) {
	return r.one(ctx, fmt.Sprintf("CREATE (n:%s $props) RETURN n", r.label), map[string]any{"props": r.toMap(entity)})
}

func (r *Neo4jRepo[T, ID]) Update(ctx context.Context, entity T) (T, error) {
	props := r.toMap(entity)
	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) SET n += $props RETURN n", r.label, r.idKey)
	return r.one(ctx, cypher, map[string]any{"id": props[r.idKey], "props": props})
}

func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey)
	_, err := sess.Run(ctx, cypher, map[string]any{"id": id})
	return err
}

// Exec runs arbitrary cypher and reports whether it produced at least one
// row. It serves relationship writes and existence checks that do not
// decode into T.
func (r *Neo4jRepo[T, ID]) Exec(ctx context.Context, cypher string, params map[string]any) (bool, error) {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return false, err
	}
	return res.Next(ctx), nil
}

func (r *Neo4jRepo[T, ID]) one(ctx context.Context, cypher string, params map[string]any) (T, error) {
	var zero T
	sess := r.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return zero, err
	}
	if !res.Next(ctx) {
		return zero, fmt.Errorf("%s: %w", r.label, ErrNotFound)
	}
	return r.fromRecord(res.Record())
}

// whereClause builds " WHERE n.a = $f_a AND ..." with keys in sorted order
// so the cypher text is stable.
func whereClause(props map[string]any) (string, map[string]any) {
	params := make(map[string]any, len(props)+2)
	if len(props) == 0 {
		return "", params
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, len(keys))
	for i, k := range keys {
		p := "f_" + k
		conds[i] = fmt.Sprintf("n.%s = $%s", k, p)
		params[p] = props[k]
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}
