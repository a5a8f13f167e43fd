package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/jobrunner/tilesync/internal/domain"
)

// SQLiteLoader reads identifiers from a column of a GeoPackage or plain
// SQLite table, e.g. the APFONAME attribute of a quarter-quad index layer.
type SQLiteLoader struct {
	path   string
	table  string
	column string
}

// NewSQLiteLoader creates a SQLite catalog loader. An empty table selects
// the first feature table registered in gpkg_contents.
func NewSQLiteLoader(path, table, column string) *SQLiteLoader {
	return &SQLiteLoader{path: path, table: table, column: column}
}

// Load implements output.CatalogLoader.
func (l *SQLiteLoader) Load(ctx context.Context) (*domain.Catalog, error) {
	if _, err := os.Stat(l.path); err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.CatalogLoadError{Source: l.path, Err: domain.ErrCatalogMissing}
		}
		return nil, &domain.CatalogLoadError{Source: l.path, Err: err}
	}

	db, err := sql.Open("sqlite3", "file:"+l.path+"?mode=ro")
	if err != nil {
		return nil, &domain.CatalogLoadError{Source: l.path, Err: err}
	}
	defer func() { _ = db.Close() }()

	ids, err := l.readIDs(ctx, db)
	if err != nil {
		return nil, &domain.CatalogLoadError{Source: l.path, Err: err}
	}
	return domain.NewCatalog(ids), nil
}

func (l *SQLiteLoader) readIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	table := l.table
	if table == "" {
		var err error
		table, err = firstFeatureTable(ctx, db)
		if err != nil {
			return nil, err
		}
	}

	column, err := resolveColumn(ctx, db, table, l.column)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", quoteIdent(column), quoteIdent(table)) //#nosec G201 -- identifiers are validated against table_info
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s.%s: %w", table, column, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if s := formatValue(v); s != "" {
			ids = append(ids, s)
		}
	}
	return ids, rows.Err()
}

// firstFeatureTable returns the first feature layer of a GeoPackage.
func firstFeatureTable(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT table_name FROM gpkg_contents WHERE data_type = 'features' ORDER BY table_name LIMIT 1",
	).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("finding feature table: %w", err)
	}
	return name, nil
}

// resolveColumn matches column case-insensitively against the table schema.
func resolveColumn(ctx context.Context, db *sql.DB, table, column string) (string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return "", fmt.Errorf("reading schema of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	found := false
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return "", err
		}
		found = true
		if strings.EqualFold(name, column) {
			return name, nil
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("table %q: %w", table, domain.ErrNotFound)
	}
	return "", fmt.Errorf("%w: %q not in table %q", domain.ErrColumnMissing, column, table)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return strings.TrimSpace(string(x))
	case string:
		return strings.TrimSpace(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
