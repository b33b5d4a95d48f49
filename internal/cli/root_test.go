package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "vendingctl", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{{"init"}, {"item", "add"}, {"stock"}, {"sales"}, {"loadtest"}}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"driver", "dsn", "redis", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, tempDSN(t), "--format", "yaml", "stock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestItemAddAndStock(t *testing.T) {
	dsn := tempDSN(t)

	_, err := execute(t, dsn, "init")
	require.NoError(t, err)

	out, err := execute(t, dsn, "item", "add", "Cola", "--stock", "3", "--price", "1.50", "--shelf", "A", "--address", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "added Cola")
	assert.Contains(t, out, "slot A1")

	out, err = execute(t, dsn, "--format", "json", "stock")
	require.NoError(t, err)

	var items []itemJSON
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Cola", items[0].Name)
	assert.Equal(t, 3, items[0].Stock)
	assert.Equal(t, json.Number("1.5"), items[0].Price)
}

func TestItemAdd_Duplicate(t *testing.T) {
	dsn := tempDSN(t)

	_, err := execute(t, dsn, "item", "add", "Cola", "--stock", "1")
	require.NoError(t, err)

	_, err = execute(t, dsn, "item", "add", "Cola", "--stock", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestItemAdd_InvalidPrice(t *testing.T) {
	_, err := execute(t, tempDSN(t), "item", "add", "Cola", "--price", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid price")
}

func TestLoadTest(t *testing.T) {
	dsn := tempDSN(t)

	out, err := execute(t, dsn, "--format", "json", "loadtest", "--stock", "5", "--requests", "12")
	require.NoError(t, err)

	var res LoadTestResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Pass)
	assert.Equal(t, 5, res.Succeeded)
	assert.Equal(t, 7, res.OutOfStock)
	assert.Equal(t, 0, res.FinalStock)
	assert.Equal(t, 5, res.SalesLogged)

	out, err = execute(t, dsn, "--format", "json", "sales")
	require.NoError(t, err)

	var sales []saleJSON
	require.NoError(t, json.Unmarshal([]byte(out), &sales))
	assert.Len(t, sales, 5)
	for _, sale := range sales {
		assert.Equal(t, res.Item, sale.Item)
		assert.Equal(t, "unknown", sale.Name)
	}
}

func tempDSN(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "vending.db") + "?_busy_timeout=5000"
}

func execute(t *testing.T, dsn string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--driver", "sqlite3", "--dsn", dsn, "--redis", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}
