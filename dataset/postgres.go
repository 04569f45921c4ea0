package dataset

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PG loads datasets from the tables of a PostgreSQL schema. It is an
// alternative to a CSV export directory when the ERP data is already
// mirrored into a database.
type PG struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// ConnectPG opens and pings a pool.
func ConnectPG(ctx context.Context, dsn string, logger *zap.Logger) (*PG, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "pgx connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pgx ping")
	}
	return &PG{Pool: pool, logger: logger.Named("pg")}, nil
}

// Close shuts down the pool.
func (p *PG) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// ListTables returns the base tables of schema.
func (p *PG) ListTables(ctx context.Context, schema string) ([]string, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := p.Pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schema)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// LoadSchema reads every table of schema into a dataset named after it.
func (p *PG) LoadSchema(ctx context.Context, schema string) ([]*Dataset, error) {
	if schema == "" {
		schema = "public"
	}
	tables, err := p.ListTables(ctx, schema)
	if err != nil {
		return nil, err
	}
	out := make([]*Dataset, 0, len(tables))
	for _, t := range tables {
		d, err := p.LoadTable(ctx, schema, t)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// LoadTable reads one table; every value is rendered as text and NULL
// becomes the empty string.
func (p *PG) LoadTable(ctx context.Context, schema, table string) (*Dataset, error) {
	sql := "SELECT * FROM " + pgx.Identifier{schema, table}.Sanitize()
	rows, err := p.Pool.Query(ctx, sql)
	if err != nil {
		return nil, errors.Wrapf(err, "load table %s.%s", schema, table)
	}
	defer rows.Close()

	var columns []string
	for _, fd := range rows.FieldDescriptions() {
		columns = append(columns, fd.Name)
	}

	var data [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "load table %s.%s", schema, table)
	}
	p.logger.Debug("table loaded", zap.String("table", table), zap.Int("rows", len(data)))
	return New(table, columns, data), nil
}
