package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveColumns(t *testing.T) {
	cols, err := ResolveColumns("inventory", []string{"stock", "", "name", "stock"}, []string{"name", "stock"})
	require.NoError(t, err)

	assert.Equal(t, 3, cols.Col("name"))
	assert.Equal(t, 1, cols.Col("stock"), "leftmost duplicate wins")
	assert.Equal(t, 0, cols.Col("price"))
	assert.Equal(t, []string{"7", "", "Cola", ""}, cols.Row(map[string]string{"name": "Cola", "stock": "7", "other": "x"}))
}

func TestResolveColumns_Missing(t *testing.T) {
	_, err := ResolveColumns("users", []string{"name"}, []string{"name", "id", "grade"})
	require.ErrorIs(t, err, ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "id, grade")
}

func TestInitSheets(t *testing.T) {
	sheets := newMockSheets()
	names := DefaultSheetNames()
	sheets.sheets[names.Inventory] = nil
	sheets.sheets[names.Users] = [][]string{{"id", "name", "student_id", "grade"}}
	delete(sheets.sheets, names.Sales)

	require.NoError(t, InitSheets(context.Background(), sheets, names))

	header, err := sheets.Header(context.Background(), names.Inventory)
	require.NoError(t, err)
	assert.Equal(t, inventoryHeader, header)

	header, err = sheets.Header(context.Background(), names.Users)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "student_id", "grade"}, header)

	_, err = LoadSchema(context.Background(), sheets, names)
	require.NoError(t, err)
}
