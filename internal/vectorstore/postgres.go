package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memochater/core/internal/kind"
)

// PostgresVectorStore is a Store backed by pgvector over pgx/v5: a single
// table with a pgvector column and a JSONB payload column, distance
// operator selected by
// Distance. Added to exercise a relational/pgvector stack alongside
// QdrantStore.
type PostgresVectorStore struct {
	pool     *pgxpool.Pool
	table    string
	distance Distance
}

// NewPostgresVectorStore opens (but does not create) the embeddings table
// named by cfg.Name; call Ensure to create it.
func NewPostgresVectorStore(pool *pgxpool.Pool, cfg CollectionConfig) *PostgresVectorStore {
	table := cfg.Name
	if table == "" {
		table = "embeddings"
	}
	return &PostgresVectorStore{pool: pool, table: table, distance: cfg.Distance}
}

func (p *PostgresVectorStore) Ensure(ctx context.Context, cfg CollectionConfig) error {
	if _, err := p.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return kind.New(kind.Connection, "Ensure", err)
	}
	vecType := "vector"
	if cfg.Dimension > 0 {
		vecType = fmt.Sprintf("vector(%d)", cfg.Dimension)
	}
	stmt := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  vec %s,
  payload JSONB NOT NULL DEFAULT '{}'::jsonb
)`, pgIdent(p.table), vecType)
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return kind.New(kind.Connection, "Ensure", err)
	}
	return nil // CREATE TABLE IF NOT EXISTS makes this idempotent
}

func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func toVectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (p *PostgresVectorStore) Upsert(ctx context.Context, pt Point) error {
	raw, err := json.Marshal(pt.Payload)
	if err != nil {
		return kind.New(kind.Serialization, "Upsert", err)
	}
	stmt := fmt.Sprintf(`
INSERT INTO %s(id, vec, payload) VALUES($1, $2::vector, $3::jsonb)
ON CONFLICT (id) DO UPDATE SET vec = EXCLUDED.vec, payload = EXCLUDED.payload`, pgIdent(p.table))
	if _, err := p.pool.Exec(ctx, stmt, pt.ID, toVectorLiteral(pt.Vector), raw); err != nil {
		return kind.New(kind.Point, "Upsert", err)
	}
	return nil
}

func (p *PostgresVectorStore) UpsertBatch(ctx context.Context, pts []Point) error {
	batch := &pgx.Batch{}
	stmt := fmt.Sprintf(`
INSERT INTO %s(id, vec, payload) VALUES($1, $2::vector, $3::jsonb)
ON CONFLICT (id) DO UPDATE SET vec = EXCLUDED.vec, payload = EXCLUDED.payload`, pgIdent(p.table))
	for _, pt := range pts {
		raw, err := json.Marshal(pt.Payload)
		if err != nil {
			return kind.New(kind.Serialization, "UpsertBatch", err)
		}
		batch.Queue(stmt, pt.ID, toVectorLiteral(pt.Vector), raw)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pts {
		if _, err := br.Exec(); err != nil {
			return kind.New(kind.Point, "UpsertBatch", err)
		}
	}
	return nil
}

func (p *PostgresVectorStore) Search(ctx context.Context, query []float32, k int, filter *Filter) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	op, scoreExpr := distanceExprs(p.distance)
	where, args := whereClauseFromFilter(filter, 3)
	args = append([]any{toVectorLiteral(query), k}, args...)
	stmt := fmt.Sprintf(`SELECT id, %s AS score, payload FROM %s %s ORDER BY vec %s $1::vector LIMIT $2`,
		scoreExpr, pgIdent(p.table), where, op)
	rows, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, kind.New(kind.Search, "Search", err)
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var r Result
		var raw []byte
		if err := rows.Scan(&r.ID, &r.Score, &raw); err != nil {
			return nil, kind.New(kind.Search, "Search", err)
		}
		if err := json.Unmarshal(raw, &r.Payload); err != nil {
			return nil, kind.New(kind.Serialization, "Search", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *PostgresVectorStore) Scroll(ctx context.Context, limit int, filter *Filter) ([]Result, error) {
	if limit <= 0 {
		limit = 100
	}
	where, args := whereClauseFromFilter(filter, 2)
	args = append([]any{limit}, args...)
	stmt := fmt.Sprintf(`SELECT id, payload FROM %s %s LIMIT $1`, pgIdent(p.table), where)
	rows, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, kind.New(kind.Search, "Scroll", err)
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var r Result
		var raw []byte
		if err := rows.Scan(&r.ID, &raw); err != nil {
			return nil, kind.New(kind.Search, "Scroll", err)
		}
		if err := json.Unmarshal(raw, &r.Payload); err != nil {
			return nil, kind.New(kind.Serialization, "Scroll", err)
		}
		r.Score = 1.0
		out = append(out, r)
	}
	return out, nil
}

func (p *PostgresVectorStore) UpdatePayload(ctx context.Context, id string, partial Payload) error {
	raw, err := json.Marshal(partial)
	if err != nil {
		return kind.New(kind.Serialization, "UpdatePayload", err)
	}
	stmt := fmt.Sprintf(`UPDATE %s SET payload = payload || $2::jsonb WHERE id = $1`, pgIdent(p.table))
	ct, err := p.pool.Exec(ctx, stmt, id, raw)
	if err != nil {
		return kind.New(kind.Point, "UpdatePayload", err)
	}
	if ct.RowsAffected() == 0 {
		return kind.New(kind.Point, "UpdatePayload", errPointNotFound(id))
	}
	return nil
}

func (p *PostgresVectorStore) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, pgIdent(p.table))
	if _, err := p.pool.Exec(ctx, stmt, id); err != nil {
		return kind.New(kind.Point, "Delete", err)
	}
	return nil
}

func (p *PostgresVectorStore) DeleteBatch(ctx context.Context, ids []string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, pgIdent(p.table))
	if _, err := p.pool.Exec(ctx, stmt, ids); err != nil {
		return kind.New(kind.Point, "DeleteBatch", err)
	}
	return nil
}

func (p *PostgresVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	stmt := fmt.Sprintf(`SELECT count(*) FROM %s`, pgIdent(p.table))
	if err := p.pool.QueryRow(ctx, stmt).Scan(&n); err != nil {
		return 0, kind.New(kind.Collection, "Count", err)
	}
	return n, nil
}

func (p *PostgresVectorStore) DropCollection(ctx context.Context) error {
	stmt := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pgIdent(p.table))
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return kind.New(kind.Collection, "DropCollection", err)
	}
	return nil
}

func distanceExprs(d Distance) (op string, scoreExpr string) {
	switch d {
	case Euclidean:
		return "<->", "-(vec <-> $1::vector)"
	case Dot:
		return "<#>", "-(vec <#> $1::vector)"
	default:
		return "<=>", "1 - (vec <=> $1::vector)"
	}
}

// whereClauseFromFilter renders f's full must/must-not/should shape as a SQL
// WHERE clause over the JSONB payload column, with placeholders starting at
// paramIdx. Equality conditions use JSONB containment; range conditions cast
// the field to numeric. must-not conditions are negated and AND-ed in;
// should conditions are OR-ed together as one AND-ed group, mirroring
// conditionMatches/matchesFilter's in-process semantics.
func whereClauseFromFilter(f *Filter, paramIdx int) (string, []any) {
	if f == nil {
		return "", nil
	}

	idx := paramIdx
	var args []any
	addCond := func(c Condition, negate bool) (string, bool) {
		expr, arg, ok := conditionSQL(c, idx)
		if !ok {
			return "", false
		}
		idx++
		args = append(args, arg)
		if negate {
			return "NOT (" + expr + ")", true
		}
		return expr, true
	}

	var clauses []string
	for _, c := range f.Must {
		if expr, ok := addCond(c, false); ok {
			clauses = append(clauses, expr)
		}
	}
	for _, c := range f.MustNot {
		if expr, ok := addCond(c, true); ok {
			clauses = append(clauses, expr)
		}
	}
	if len(f.Should) > 0 {
		var orParts []string
		for _, c := range f.Should {
			if expr, ok := addCond(c, false); ok {
				orParts = append(orParts, expr)
			}
		}
		if len(orParts) > 0 {
			clauses = append(clauses, "("+strings.Join(orParts, " OR ")+")")
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// conditionSQL renders a single condition as a SQL boolean expression
// referencing payload, plus the argument to bind at $idx. Returns ok=false
// for a range condition whose value isn't numeric, since there is no
// meaningful numeric comparison to render.
func conditionSQL(c Condition, idx int) (expr string, arg any, ok bool) {
	switch c.Op {
	case OpEq:
		raw, err := json.Marshal(map[string]any{c.Field: c.Value})
		if err != nil {
			return "", nil, false
		}
		return fmt.Sprintf("payload @> $%d::jsonb", idx), raw, true
	case OpGte, OpLte, OpGt, OpLt:
		v, ok := toFloat(c.Value)
		if !ok {
			return "", nil, false
		}
		var op string
		switch c.Op {
		case OpGte:
			op = ">="
		case OpLte:
			op = "<="
		case OpGt:
			op = ">"
		case OpLt:
			op = "<"
		}
		field := strings.ReplaceAll(c.Field, `'`, `''`)
		return fmt.Sprintf("(payload->>'%s')::numeric %s $%d", field, op, idx), v, true
	default:
		return "", nil, false
	}
}
