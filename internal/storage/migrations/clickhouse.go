package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	chstore "rwa-portfolio/internal/storage/clickhouse"
)

// ClickHouse has no transactional DDL, so applied files are recorded in a
// ReplacingMergeTree ledger and skipped on later runs.
const chVersionTable = "schema_migrations"

// RunClickhouseMigrations creates the target database if needed, applies the
// embedded files not yet recorded, and returns a connection to it.
func RunClickhouseMigrations(ctx context.Context, dsn string, log zerolog.Logger) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	_ = admin.Close()
	if err != nil {
		return nil, fmt.Errorf("create database %s: %w", dbName, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	if err := applyClickhouse(ctx, conn, log); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func applyClickhouse(ctx context.Context, conn *chstore.Conn, log zerolog.Logger) error {
	err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+chVersionTable+` (
    version     UInt32,
    file        String,
    applied_at  DateTime64(3) DEFAULT now64(3)
) ENGINE = ReplacingMergeTree()
ORDER BY version`)
	if err != nil {
		return fmt.Errorf("create %s: %w", chVersionTable, err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	files, err := clickhouseFiles()
	if err != nil {
		return err
	}

	for _, f := range files {
		if applied[f.version] {
			continue
		}
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+f.name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f.name, err)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return fmt.Errorf("validate migration %s: %w", f.name, err)
		}

		// The driver runs one statement per Exec.
		for _, stmt := range splitStatements(string(data)) {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", f.name, err)
			}
		}
		if err := conn.Exec(ctx, "INSERT INTO "+chVersionTable+" (version, file) VALUES (?, ?)", f.version, f.name); err != nil {
			return fmt.Errorf("record migration %s: %w", f.name, err)
		}
		log.Info().Uint32("version", f.version).Str("file", f.name).Msg("clickhouse migration applied")
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *chstore.Conn) (map[uint32]bool, error) {
	rows, err := conn.Query(ctx, "SELECT DISTINCT version FROM "+chVersionTable)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", chVersionTable, err)
	}
	defer rows.Close()

	applied := make(map[uint32]bool)
	for rows.Next() {
		var v uint32
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", chVersionTable, err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

type migrationFile struct {
	version uint32
	name    string
}

// clickhouseFiles lists embedded files ordered by the numeric prefix of
// their name (NNN_description.sql).
func clickhouseFiles() ([]migrationFile, error) {
	entries, err := fs.ReadDir(ClickhouseFS, "clickhouse")
	if err != nil {
		return nil, fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}

	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		v, err := parseVersion(e.Name())
		if err != nil {
			return nil, err
		}
		files = append(files, migrationFile{version: v, name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })

	for i := 1; i < len(files); i++ {
		if files[i].version == files[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", files[i].version, files[i-1].name, files[i].name)
		}
	}
	return files, nil
}

func parseVersion(name string) (uint32, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s: want NNN_name.sql", name)
	}
	v, err := strconv.ParseUint(prefix, 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("migration %s: invalid version %q", name, prefix)
	}
	return uint32(v), nil
}

// splitStatements drops -- comment lines and splits on semicolons. Files
// must not put semicolons inside string literals or block comments, which
// validateNoSemicolonInStrings enforces for literals.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects SQL with a semicolon inside a
// single-quoted literal. Doubled quotes are escapes.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case ';':
			if inString {
				return fmt.Errorf("semicolon inside string literal at offset %d", i)
			}
		}
	}
	return nil
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
