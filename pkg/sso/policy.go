package sso

import "sort"

// RolePolicy maps claim-derived roles to a local authorization outcome.
// Static per provider configuration.
type RolePolicy struct {
	// AllowedRoles gates login. Empty means no role gating: everyone the
	// IdP authenticates may log in.
	AllowedRoles []string `json:"allowed_roles,omitempty"`

	// AdminRoles grants the administrator flag.
	AdminRoles []string `json:"admin_roles,omitempty"`

	// EnableFolderRoles switches folder grants from the static
	// EnabledFolders list to the per-role FolderRoleMap union.
	EnableFolderRoles bool `json:"enable_folder_roles"`

	// FolderRoleMap associates a role name with the library folders it
	// grants.
	FolderRoleMap map[string][]string `json:"folder_role_map,omitempty"`

	// EnabledFolders is the static folder grant used when folder-role
	// mapping is disabled.
	EnabledFolders []string `json:"enabled_folders,omitempty"`

	// EnableAllFolders grants every folder; folder computation is skipped
	// entirely.
	EnableAllFolders bool `json:"enable_all_folders"`
}

// PolicyResult is the outcome of evaluating a role list against a policy.
type PolicyResult struct {
	Valid   bool
	IsAdmin bool
	Folders []string
}

// Evaluate maps the presented roles to validity, admin flag, and folder
// grants. The outcome has set semantics: it is invariant under permutation
// and duplication of the role list.
func (p *RolePolicy) Evaluate(roles []string) PolicyResult {
	present := make(map[string]bool, len(roles))
	for _, r := range roles {
		present[r] = true
	}

	res := PolicyResult{Valid: len(p.AllowedRoles) == 0}
	for _, allowed := range p.AllowedRoles {
		if present[allowed] {
			res.Valid = true
			break
		}
	}

	for _, admin := range p.AdminRoles {
		if present[admin] {
			res.IsAdmin = true
			break
		}
	}

	res.Folders = p.folders(present)
	return res
}

// folders computes the folder grant. With EnableAllFolders the grant list is
// ignored downstream, so nothing is computed here.
func (p *RolePolicy) folders(present map[string]bool) []string {
	if p.EnableAllFolders {
		return nil
	}
	if !p.EnableFolderRoles {
		return append([]string(nil), p.EnabledFolders...)
	}

	mapped := make([]string, 0, len(p.FolderRoleMap))
	for role := range p.FolderRoleMap {
		if present[role] {
			mapped = append(mapped, role)
		}
	}
	sort.Strings(mapped)

	var folders []string
	granted := make(map[string]bool)
	for _, role := range mapped {
		for _, folder := range p.FolderRoleMap[role] {
			if !granted[folder] {
				granted[folder] = true
				folders = append(folders, folder)
			}
		}
	}
	return folders
}
