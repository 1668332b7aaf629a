package sqlchat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/elsai-io/elsai-go/pkg/types"
)

func TestCheckReadOnly(t *testing.T) {
	assert.NoError(t, checkReadOnly("SELECT * FROM users"))
	assert.NoError(t, checkReadOnly("  select count(*) from orders"))
	assert.Error(t, checkReadOnly("DELETE FROM users"))
	assert.Error(t, checkReadOnly("drop table users"))
	assert.Error(t, checkReadOnly("Update users set name = 'x'"))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "SELECT 1", stripFences("SELECT 1"))
	assert.Equal(t, "SELECT 1", stripFences("```sql\nSELECT 1\n```"))
	assert.Equal(t, "SELECT 1", stripFences("```\nSELECT 1\n```"))
}

func TestNewPostgresMissingConfig(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("DB_NAME", "")

	_, err := NewPostgres("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_URL")
	assert.Contains(t, err.Error(), "DB_NAME")
}

func TestConnectorQueryWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig())
	require.NoError(t, err)

	mock.ExpectQuery("SELECT name, total FROM orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "total"}).
			AddRow("alice", 42).
			AddRow("bob", 7))

	c := NewConnector(gdb, "postgres")
	rows, err := c.Query(context.Background(), "SELECT name, total FROM orders")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["name"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectorQueryRejectsWrites(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig())
	require.NoError(t, err)

	c := NewConnector(gdb, "postgres")
	_, err = c.Query(context.Background(), "DELETE FROM orders")
	require.Error(t, err)
}

// scriptedModel replays canned completions in order.
type scriptedModel struct {
	replies []string
	prompts []string
}

func (m *scriptedModel) Complete(_ context.Context, messages []types.Message) (string, error) {
	m.prompts = append(m.prompts, messages[len(messages)-1].Content)
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func TestAgentInvoke(t *testing.T) {
	c, err := NewSQLite(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)

	require.NoError(t, c.db.Exec("CREATE TABLE products (name TEXT, price REAL)").Error)
	require.NoError(t, c.db.Exec("INSERT INTO products VALUES ('widget', 9.99), ('gadget', 19.99)").Error)

	model := &scriptedModel{replies: []string{
		"```sql\nSELECT name, price FROM products ORDER BY price DESC LIMIT 1\n```",
		"The most expensive product is the gadget at 19.99.",
	}}

	agent := NewAgent(c, model)
	result, err := agent.Invoke(context.Background(), "what is the most expensive product?")
	require.NoError(t, err)

	assert.Equal(t, "SELECT name, price FROM products ORDER BY price DESC LIMIT 1", result.SQL)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "gadget", result.Rows[0]["name"])
	assert.Contains(t, result.Answer, "gadget")

	// The generation prompt carried the schema.
	require.Len(t, model.prompts, 2)
	assert.Contains(t, model.prompts[0], "products")
	// The answer prompt carried the rows.
	assert.Contains(t, model.prompts[1], "19.99")
}

func TestAgentInvokeRejectsGeneratedWrite(t *testing.T) {
	c, err := NewSQLite(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	require.NoError(t, c.db.Exec("CREATE TABLE products (name TEXT)").Error)

	model := &scriptedModel{replies: []string{"DROP TABLE products"}}
	agent := NewAgent(c, model)

	_, err = agent.Invoke(context.Background(), "delete everything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-read")
}
