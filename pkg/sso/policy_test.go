package sso

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_NoRoleGating(t *testing.T) {
	policy := RolePolicy{}

	assert.True(t, policy.Evaluate(nil).Valid)
	assert.True(t, policy.Evaluate([]string{"anything"}).Valid)
}

func TestEvaluate_AllowedRoles(t *testing.T) {
	policy := RolePolicy{AllowedRoles: []string{"media-users"}}

	assert.True(t, policy.Evaluate([]string{"media-users"}).Valid)
	assert.True(t, policy.Evaluate([]string{"other", "media-users"}).Valid)
	assert.False(t, policy.Evaluate([]string{"other"}).Valid)
	assert.False(t, policy.Evaluate(nil).Valid)
}

func TestEvaluate_AdminRoles(t *testing.T) {
	policy := RolePolicy{AdminRoles: []string{"media-admins"}}

	assert.True(t, policy.Evaluate([]string{"media-admins"}).IsAdmin)
	assert.False(t, policy.Evaluate([]string{"media-users"}).IsAdmin)
}

func TestEvaluate_OrderAndDuplicateInvariant(t *testing.T) {
	policy := RolePolicy{
		AllowedRoles:      []string{"users"},
		AdminRoles:        []string{"admins"},
		EnableFolderRoles: true,
		FolderRoleMap: map[string][]string{
			"users":  {"movies", "shows"},
			"admins": {"shows", "music"},
		},
	}

	base := policy.Evaluate([]string{"users", "admins"})
	permuted := policy.Evaluate([]string{"admins", "users"})
	duplicated := policy.Evaluate([]string{"users", "users", "admins", "users"})

	assert.Equal(t, base.Valid, permuted.Valid)
	assert.Equal(t, base.IsAdmin, permuted.IsAdmin)
	assert.ElementsMatch(t, base.Folders, permuted.Folders)

	assert.Equal(t, base.Valid, duplicated.Valid)
	assert.Equal(t, base.IsAdmin, duplicated.IsAdmin)
	assert.ElementsMatch(t, base.Folders, duplicated.Folders)
}

func TestEvaluate_StaticFolders(t *testing.T) {
	policy := RolePolicy{
		EnabledFolders: []string{"movies", "shows"},
	}

	res := policy.Evaluate([]string{"whatever"})
	assert.Equal(t, []string{"movies", "shows"}, res.Folders)
}

func TestEvaluate_FolderRoleUnion(t *testing.T) {
	policy := RolePolicy{
		EnableFolderRoles: true,
		FolderRoleMap: map[string][]string{
			"users":   {"movies", "shows"},
			"editors": {"shows", "music"},
			"unheld":  {"private"},
		},
	}

	res := policy.Evaluate([]string{"users", "editors"})
	assert.ElementsMatch(t, []string{"movies", "shows", "music"}, res.Folders)
	assert.NotContains(t, res.Folders, "private")
}

func TestEvaluate_AllFoldersSkipsComputation(t *testing.T) {
	policy := RolePolicy{
		EnableAllFolders:  true,
		EnableFolderRoles: true,
		FolderRoleMap:     map[string][]string{"users": {"movies"}},
		EnabledFolders:    []string{"shows"},
	}

	res := policy.Evaluate([]string{"users"})
	assert.Empty(t, res.Folders)
}
