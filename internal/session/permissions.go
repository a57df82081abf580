package session

import (
	"encoding/json"
	"fmt"
	"os"
)

// AdministratorRole short-circuits every permission check.
const AdministratorRole = "Administrator"

// PermissionTable maps a role name to its granted permission strings. The
// table is configuration, not logic: deployments may override it with a JSON
// file of the same shape.
type PermissionTable map[string][]string

// DefaultPermissions mirrors the backend's seeded roles.
func DefaultPermissions() PermissionTable {
	return PermissionTable{
		"Administrator": {"*"},
		"Financial Manager": {
			"account_create", "account_read", "account_update",
			"journal_create", "journal_read", "journal_update", "journal_post",
			"cost_center_read", "project_read", "budget_read", "grant_read",
			"supplier_read", "asset_read", "reports_read", "dashboard_read",
		},
		"Accountant": {
			"account_read", "journal_create", "journal_read",
			"cost_center_read", "project_read", "reports_read", "dashboard_read",
		},
		"Data Entry Clerk": {
			"account_read", "journal_create", "journal_read",
			"cost_center_read", "project_read", "dashboard_read",
		},
		"Auditor": {
			"account_read", "journal_read", "cost_center_read", "project_read",
			"budget_read", "grant_read", "supplier_read", "asset_read",
			"reports_read", "dashboard_read", "audit_read",
		},
	}
}

// LoadPermissions reads a role→permissions table from a JSON file.
func LoadPermissions(path string) (PermissionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read permissions file: %w", err)
	}

	var table PermissionTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse permissions file: %w", err)
	}

	return table, nil
}

// Allows reports whether the role grants the permission. The Administrator
// role and a literal "*" entry grant everything.
func (t PermissionTable) Allows(role string, permission string) bool {
	if role == AdministratorRole {
		return true
	}

	for _, granted := range t[role] {
		if granted == "*" || granted == permission {
			return true
		}
	}

	return false
}
