package models

import "maps"

// Right names a privileged operation.
type Right = string

// Rights gated by the access control core.
const (
	RightManageService   Right = "manage_service"
	RightManageConfig    Right = "manage_config"
	RightViewMetrics     Right = "view_metrics"
	RightViewRecentFiles Right = "view_recent_files"
	RightModifyLayout    Right = "modify_layout"
)

// Built-in role names.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// KnownRights lists every right name in display order.
func KnownRights() []Right {
	return []Right{
		RightManageService,
		RightManageConfig,
		RightViewMetrics,
		RightViewRecentFiles,
		RightModifyLayout,
	}
}

// IsKnownRight reports whether name is one of the fixed rights.
func IsKnownRight(name string) bool {
	for _, r := range KnownRights() {
		if r == name {
			return true
		}
	}
	return false
}

// RoleRights maps right names to grants for one role.
type RoleRights map[Right]bool

// Clone returns a copy of the table.
func (r RoleRights) Clone() RoleRights {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// DefaultRoles returns the role table used when the registry defines none.
func DefaultRoles() map[string]RoleRights {
	return map[string]RoleRights{
		RoleAdmin: {
			RightManageService:   true,
			RightManageConfig:    true,
			RightViewMetrics:     true,
			RightViewRecentFiles: true,
			RightModifyLayout:    true,
		},
		RoleOperator: {
			RightManageService:   true,
			RightManageConfig:    false,
			RightViewMetrics:     true,
			RightViewRecentFiles: true,
			RightModifyLayout:    false,
		},
		RoleViewer: {
			RightManageService:   false,
			RightManageConfig:    false,
			RightViewMetrics:     true,
			RightViewRecentFiles: true,
			RightModifyLayout:    false,
		},
	}
}
