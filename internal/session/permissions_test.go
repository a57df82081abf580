package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionTable_Allows(t *testing.T) {
	table := DefaultPermissions()

	tests := []struct {
		name       string
		role       string
		permission string
		want       bool
	}{
		{"administrator gets everything", "Administrator", "anything_at_all", true},
		{"wildcard entry grants everything", "Administrator", "journal_post", true},
		{"financial manager can post", "Financial Manager", "journal_post", true},
		{"accountant cannot post", "Accountant", "journal_post", false},
		{"accountant can create", "Accountant", "journal_create", true},
		{"auditor reads audit trail", "Auditor", "audit_read", true},
		{"clerk cannot read reports", "Data Entry Clerk", "reports_read", false},
		{"unknown role gets nothing", "Intern", "dashboard_read", false},
		{"empty role gets nothing", "", "dashboard_read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Allows(tt.role, tt.permission))
		})
	}
}

func TestLoadPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Viewer": ["dashboard_read"]}`), 0o644))

	table, err := LoadPermissions(path)
	require.NoError(t, err)

	assert.True(t, table.Allows("Viewer", "dashboard_read"))
	assert.False(t, table.Allows("Viewer", "journal_read"))

	_, err = LoadPermissions(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
