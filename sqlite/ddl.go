package sqlite

import (
	"context"
	"fmt"
	"os"

	"github.com/fwojciec/ragchat"
	"github.com/ncruces/go-sqlite3"
	"github.com/ncruces/go-sqlite3/driver"
)

// LoadDDLSchema builds a relational schema from SQL table definitions. The
// statements are executed in a scratch in-memory database and the tables
// and columns are read back from its catalog, so any DDL SQLite accepts
// can be used. Attaching other databases is refused, so the DDL cannot
// touch files.
func LoadDDLSchema(ctx context.Context, ddl string) (*ragchat.Schema, error) {
	db, err := openScratch()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, ragchat.Errorf(ragchat.EINVALID, "invalid schema DDL: %s", err)
	}

	names, err := tableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	tables := make([]ragchat.Table, 0, len(names))
	for _, name := range names {
		columns, err := tableColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, ragchat.Table{Name: name, Columns: columns})
	}
	return ragchat.SchemaFromTables(tables)
}

// openScratch opens an in-memory database that cannot attach others.
// VACUUM INTO attaches its target, so it is refused as well.
func openScratch() (*DB, error) {
	conn, err := driver.Open(":memory:", func(c *sqlite3.Conn) error {
		c.Limit(sqlite3.LIMIT_ATTACHED, 0)
		return c.SetAuthorizer(func(action sqlite3.AuthorizerActionCode, _, _, _, _ string) sqlite3.AuthorizerReturnCode {
			if action == sqlite3.AUTH_ATTACH {
				return sqlite3.AUTH_DENY
			}
			return sqlite3.AUTH_OK
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return &DB{db: conn, path: ":memory:"}, nil
}

// LoadDDLSchemaFile reads SQL table definitions from path.
func LoadDDLSchemaFile(ctx context.Context, path string) (*ragchat.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadDDLSchema(ctx, string(data))
}

func tableNames(ctx context.Context, db *DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func tableColumns(ctx context.Context, db *DB, table string) ([]ragchat.Column, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ragchat.Column
	for rows.Next() {
		var c ragchat.Column
		if err := rows.Scan(&c.Name); err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}
