// Package postgres implements medialib.MediaStore on PostgreSQL through
// database/sql and the pgx driver, with embedded goose migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	medialib "github.com/shoraid/go-medialib"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to dsn with the pgx driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

const mediaColumns = `id, model_type, model_id, collection_name, name, file_name, mime_type, size, disk,
	custom_properties, order_column, status, conversion_attempts, created_at, updated_at`

// MediaStore persists media records in the media table.
type MediaStore struct {
	db DBTX
}

var _ medialib.MediaStore = (*MediaStore)(nil)

func NewMediaStore(db DBTX) *MediaStore {
	return &MediaStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*medialib.Media, error) {
	var (
		m          medialib.Media
		modelType  string
		status     string
		properties []byte
	)
	if err := row.Scan(
		&m.ID, &modelType, &m.Model.ID, &m.CollectionName, &m.Name, &m.FileName, &m.MimeType, &m.Size, &m.Disk,
		&properties, &m.OrderColumn, &status, &m.ConversionAttempts, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Model.Type = medialib.ModelType(modelType)
	m.Status = medialib.Status(status)
	if err := json.Unmarshal(properties, &m.CustomProperties); err != nil {
		return nil, fmt.Errorf("decode custom_properties of media %d: %w", m.ID, err)
	}
	return &m, nil
}

func (s *MediaStore) Create(ctx context.Context, m *medialib.Media) error {
	properties, err := json.Marshal(m.CustomProperties)
	if err != nil {
		return fmt.Errorf("encode custom_properties: %w", err)
	}

	query := `
		INSERT INTO media (model_type, model_id, collection_name, name, file_name, mime_type, size, disk,
			custom_properties, order_column, status, conversion_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		string(m.Model.Type), m.Model.ID, m.CollectionName, m.Name, m.FileName, m.MimeType, m.Size, m.Disk,
		string(properties), m.OrderColumn, string(m.Status), m.ConversionAttempts,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (s *MediaStore) FindByID(ctx context.Context, id int64) (*medialib.Media, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1`

	m, err := scanMedia(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", medialib.ErrMediaNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select media: %w", err)
	}
	return m, nil
}

// placeholders appends values to args and returns "$n, $n+1, ...".
func placeholders[T any](args []any, values []T) ([]any, string) {
	marks := make([]string, len(values))
	for i, v := range values {
		args = append(args, v)
		marks[i] = fmt.Sprintf("$%d", len(args))
	}
	return args, strings.Join(marks, ", ")
}

func (s *MediaStore) FindMany(ctx context.Context, f medialib.MediaFilter) ([]*medialib.Media, error) {
	var (
		conds []string
		args  []any
		list  string
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if len(f.IDs) > 0 {
		args, list = placeholders(args, f.IDs)
		conds = append(conds, "id IN ("+list+")")
	}
	if f.ModelType != "" {
		add("model_type = $%d", string(f.ModelType))
	}
	if f.ModelID != nil {
		add("model_id = $%d", *f.ModelID)
	}
	if f.Collection != "" {
		add("collection_name = $%d", f.Collection)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		args, list = placeholders(args, statuses)
		conds = append(conds, "status IN ("+list+")")
	}
	if !f.CreatedBefore.IsZero() {
		add("created_at < $%d", f.CreatedBefore)
	}

	var b strings.Builder
	b.WriteString("SELECT " + mediaColumns + " FROM media")
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	switch f.OrderBy {
	case medialib.OrderByOldest:
		b.WriteString(" ORDER BY created_at, id")
	default:
		b.WriteString(" ORDER BY collection_name, order_column, created_at, id")
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select media: %w", err)
	}
	defer rows.Close()

	var result []*medialib.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// propertiesExpr builds the custom_properties assignment. Caller values replace
// everything but generated_conversions; conversion flags are merged key by key.
func propertiesExpr(p medialib.MediaPatch, args []any) (string, []any, error) {
	expr := "custom_properties"

	if p.CustomValues != nil {
		values, err := json.Marshal(medialib.NewCustomProperties(p.CustomValues).Values)
		if err != nil {
			return "", nil, fmt.Errorf("encode custom values: %w", err)
		}
		args = append(args, string(values))
		expr = fmt.Sprintf(
			"($%d::jsonb || jsonb_build_object('generated_conversions', COALESCE(custom_properties->'generated_conversions', '{}'::jsonb)))",
			len(args))
	}

	if p.GeneratedConversions != nil {
		flags, err := json.Marshal(p.GeneratedConversions)
		if err != nil {
			return "", nil, fmt.Errorf("encode conversions: %w", err)
		}
		args = append(args, string(flags))
		expr = fmt.Sprintf(
			"jsonb_set(%s, '{generated_conversions}', COALESCE(%s->'generated_conversions', '{}'::jsonb) || $%d::jsonb)",
			expr, expr, len(args))
	}

	return expr, args, nil
}

func (s *MediaStore) Update(ctx context.Context, id int64, p medialib.MediaPatch) (*medialib.Media, error) {
	var (
		sets []string
		args []any
	)
	set := func(column string, arg any) {
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.CollectionName != nil {
		set("collection_name", *p.CollectionName)
	}
	if p.ModelID != nil {
		set("model_id", *p.ModelID)
	}
	if p.OrderColumn != nil {
		set("order_column", *p.OrderColumn)
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.ConversionAttempts != nil {
		set("conversion_attempts", *p.ConversionAttempts)
	}
	if p.CustomValues != nil || p.GeneratedConversions != nil {
		expr, next, err := propertiesExpr(p, args)
		if err != nil {
			return nil, err
		}
		args = next
		sets = append(sets, "custom_properties = "+expr)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE media SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), mediaColumns)

	m, err := scanMedia(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", medialib.ErrMediaNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update media: %w", err)
	}
	return m, nil
}

func (s *MediaStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("%w: %d", medialib.ErrMediaNotFound, id)
	}
	return nil
}

func (s *MediaStore) MaxOrder(ctx context.Context, ref medialib.ModelRef, collection string) (int, error) {
	query := `
		SELECT COALESCE(MAX(order_column), 0) FROM media
		WHERE model_type = $1 AND model_id = $2 AND collection_name = $3
	`
	var maxOrder int
	if err := s.db.QueryRowContext(ctx, query, string(ref.Type), ref.ID, collection).Scan(&maxOrder); err != nil {
		return 0, fmt.Errorf("select max order: %w", err)
	}
	return maxOrder, nil
}
