// Package sqlchat answers natural-language questions against a SQL database
// by generating and executing queries with a chat model.
package sqlchat

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/elsai-io/elsai-go/pkg/config"
)

// Connector wraps an open database connection and its dialect name.
type Connector struct {
	db      *gorm.DB
	dialect string
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
}

// NewPostgres connects to PostgreSQL. An empty DSN is assembled from DB_URL,
// DB_USER, DB_PASSWORD and DB_NAME.
func NewPostgres(dsn string) (*Connector, error) {
	dsn, err := resolveDSN(dsn, func(c config.Database) string {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s", c.URL, c.User, c.Password, c.Name)
	})
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Connector{db: db, dialect: "postgres"}, nil
}

// NewMySQL connects to MySQL.
func NewMySQL(dsn string) (*Connector, error) {
	dsn, err := resolveDSN(dsn, func(c config.Database) string {
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", c.User, c.Password, c.URL, c.Name)
	})
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	return &Connector{db: db, dialect: "mysql"}, nil
}

// NewSQLite opens a SQLite database file.
func NewSQLite(path string) (*Connector, error) {
	if path == "" {
		path = os.Getenv("DB_NAME")
	}
	if path == "" {
		return nil, config.MissingError([2]string{"path", "DB_NAME"})
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	return &Connector{db: db, dialect: "sqlite"}, nil
}

// NewConnector wraps an already-open gorm connection.
func NewConnector(db *gorm.DB, dialect string) *Connector {
	return &Connector{db: db, dialect: dialect}
}

func resolveDSN(dsn string, build func(config.Database) string) (string, error) {
	if dsn != "" {
		return dsn, nil
	}

	c := config.Database{
		Name:     os.Getenv("DB_NAME"),
		URL:      os.Getenv("DB_URL"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
	}
	if c.URL == "" || c.Name == "" {
		return "", config.MissingError(
			[2]string{"db_url", "DB_URL"},
			[2]string{"db_name", "DB_NAME"},
		)
	}
	return build(c), nil
}

// Schema describes the database's tables and columns for prompt building.
func (c *Connector) Schema() (string, error) {
	migrator := c.db.Migrator()

	tables, err := migrator.GetTables()
	if err != nil {
		return "", fmt.Errorf("failed to list tables: %w", err)
	}
	sort.Strings(tables)

	var b strings.Builder
	for _, table := range tables {
		columns, err := migrator.ColumnTypes(table)
		if err != nil {
			return "", fmt.Errorf("failed to describe table %s: %w", table, err)
		}

		fmt.Fprintf(&b, "Table %s (", table)
		for i, col := range columns {
			if i > 0 {
				b.WriteString(", ")
			}
			typeName, _ := col.ColumnType()
			fmt.Fprintf(&b, "%s %s", col.Name(), typeName)
		}
		b.WriteString(")\n")
	}
	return b.String(), nil
}

// Query executes a read-only SQL statement and returns the rows as maps.
func (c *Connector) Query(ctx context.Context, query string) ([]map[string]interface{}, error) {
	if err := checkReadOnly(query); err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	if err := c.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return rows, nil
}

// checkReadOnly rejects statements that modify data.
func checkReadOnly(query string) error {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, verb := range []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE", "GRANT", "REVOKE"} {
		if strings.HasPrefix(q, verb) {
			return fmt.Errorf("refusing to execute non-read statement: %s", verb)
		}
	}
	return nil
}
