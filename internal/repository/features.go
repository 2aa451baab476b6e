package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/photoli93/Projet-7/internal/features"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FeaturesRepository reads and replaces the client feature table in MySQL or SQLite.
type FeaturesRepository interface {
	Load(ctx context.Context, table, idColumn string) (*features.Table, error)
	Replace(ctx context.Context, table string, t *features.Table) error
}

type FeaturesRepositoryImpl struct {
	db *sqlx.DB
}

func NewFeaturesRepository(db *sqlx.DB) *FeaturesRepositoryImpl {
	return &FeaturesRepositoryImpl{db: db}
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func checkTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

// Load reads every row ordered by the id column.
func (r *FeaturesRepositoryImpl) Load(ctx context.Context, table, idColumn string) (*features.Table, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", quoteIdent(table), quoteIdent(idColumn))
	rows, err := r.db.QueryxContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]float64
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(vals))
		for i, v := range vals {
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", len(out), columns[i], err)
			}
			row[i] = f
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return features.NewTable(idColumn, columns, out)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return features.ParseValue(string(x))
	case string:
		return features.ParseValue(x)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", features.ErrBadValue, v)
	}
}

// Replace drops and recreates table, then inserts every row of t in one
// transaction. MySQL commits the DDL implicitly; the rows still land atomically.
func (r *FeaturesRepositoryImpl) Replace(ctx context.Context, table string, t *features.Table) error {
	if err := checkTable(table); err != nil {
		return err
	}
	columns := t.Columns()
	if len(columns) == 0 {
		return errors.New("feature table has no columns")
	}

	defs := make([]string, len(columns))
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		if c == t.IDColumn() {
			defs[i] = quoted[i] + " BIGINT NOT NULL PRIMARY KEY"
		} else {
			defs[i] = quoted[i] + " DOUBLE NULL"
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		for j, v := range row {
			switch {
			case columns[j] == t.IDColumn():
				args[j] = t.IDAt(i)
			case math.IsNaN(v):
				args[j] = nil
			default:
				args[j] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert client %d: %w", t.IDAt(i), err)
		}
	}

	return tx.Commit()
}
