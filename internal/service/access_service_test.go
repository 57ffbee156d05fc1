package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/komunitas-api/internal/models"
)

type mockMembershipRepo struct {
	groups map[string][]string
	err    error
}

func (m *mockMembershipRepo) ActiveGroupIDs(ctx context.Context, userID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.groups[userID], nil
}

type mockProfileRepo struct {
	profiles map[string]*models.MemberProfile
}

func (m *mockProfileRepo) Get(ctx context.Context, userID string) (*models.MemberProfile, error) {
	profile, ok := m.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return profile, nil
}

type mockScopeCache struct {
	entries map[string][]byte
	sets    int
}

func (m *mockScopeCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return sql.ErrNoRows
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockScopeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = raw
	m.sets++
	return nil
}

func strPtr(s string) *string { return &s }

func TestResolveBuildsScopeFromMembershipsAndProfile(t *testing.T) {
	memberships := &mockMembershipRepo{groups: map[string][]string{"u1": {"g1", "g2"}}}
	profiles := &mockProfileRepo{profiles: map[string]*models.MemberProfile{
		"u1": {UserID: "u1", Area: strPtr("north"), Institution: strPtr("univ-a")},
	}}
	resolver := NewAccessResolver(memberships, profiles, nil, nil, time.Minute, nil)

	scope, err := resolver.Resolve(context.Background(), "u1", models.RoleMember)
	require.NoError(t, err)

	assert.Equal(t, "u1", scope.UserID)
	assert.Equal(t, []string{"g1", "g2"}, scope.GroupIDs)
	require.NotNil(t, scope.Area)
	assert.Equal(t, "north", *scope.Area)
	assert.Nil(t, scope.Employer)
}

func TestResolveToleratesMissingProfile(t *testing.T) {
	memberships := &mockMembershipRepo{groups: map[string][]string{}}
	profiles := &mockProfileRepo{}
	resolver := NewAccessResolver(memberships, profiles, nil, nil, time.Minute, nil)

	scope, err := resolver.Resolve(context.Background(), "ghost", models.RoleMember)
	require.NoError(t, err)

	assert.Empty(t, scope.GroupIDs)
	assert.Empty(t, scope.AttributePairs())
}

func TestResolveUsesCacheOnSecondCall(t *testing.T) {
	memberships := &mockMembershipRepo{groups: map[string][]string{"u1": {"g1"}}}
	profiles := &mockProfileRepo{}
	cache := &mockScopeCache{}
	resolver := NewAccessResolver(memberships, profiles, cache, nil, time.Minute, nil)

	first, err := resolver.Resolve(context.Background(), "u1", models.RoleMember)
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	// Simulate the memberships changing; the cached scope should win.
	memberships.groups["u1"] = nil
	second, err := resolver.Resolve(context.Background(), "u1", models.RoleMember)
	require.NoError(t, err)

	assert.Equal(t, first.GroupIDs, second.GroupIDs)
	assert.Equal(t, 1, cache.sets)
}

func TestCanSeePublic(t *testing.T) {
	resolver := NewAccessResolver(nil, nil, nil, nil, 0, nil)
	head := &models.ContentHead{Visibility: models.VisibilityPublic}

	assert.True(t, resolver.CanSee(models.AccessScope{UserID: "u1", Role: models.RoleMember}, head))
}

func TestCanSeeGroupsRequiresSharedGroup(t *testing.T) {
	resolver := NewAccessResolver(nil, nil, nil, nil, 0, nil)
	head := &models.ContentHead{
		Visibility:   models.VisibilityGroups,
		TargetGroups: []string{"g2", "g3"},
	}

	member := models.AccessScope{UserID: "u1", Role: models.RoleMember, GroupIDs: []string{"g1", "g3"}}
	outsider := models.AccessScope{UserID: "u2", Role: models.RoleMember, GroupIDs: []string{"g9"}}

	assert.True(t, resolver.CanSee(member, head))
	assert.False(t, resolver.CanSee(outsider, head))
}

func TestCanSeeGroupsEmptyTargetMatchesNobody(t *testing.T) {
	resolver := NewAccessResolver(nil, nil, nil, nil, 0, nil)
	head := &models.ContentHead{Visibility: models.VisibilityGroups}

	scope := models.AccessScope{UserID: "u1", Role: models.RoleMember, GroupIDs: []string{"g1"}}
	assert.False(t, resolver.CanSee(scope, head))
}

func TestCanSeeCustomMatchesAnyCategory(t *testing.T) {
	resolver := NewAccessResolver(nil, nil, nil, nil, 0, nil)
	head := &models.ContentHead{
		Visibility: models.VisibilityCustom,
		TargetAttrs: []models.TargetAttribute{
			{Category: models.AttrArea, Value: "north"},
			{Category: models.AttrEmployer, Value: "acme"},
		},
	}

	// Institution differs but employer matches: one hit suffices.
	scope := models.AccessScope{
		UserID:      "u1",
		Role:        models.RoleMember,
		Institution: strPtr("univ-b"),
		Employer:    strPtr("acme"),
	}
	assert.True(t, resolver.CanSee(scope, head))

	noMatch := models.AccessScope{UserID: "u2", Role: models.RoleMember, Area: strPtr("south")}
	assert.False(t, resolver.CanSee(noMatch, head))
}

func TestCanSeeCustomFailsClosedWithoutAttributes(t *testing.T) {
	resolver := NewAccessResolver(nil, nil, nil, nil, 0, nil)
	head := &models.ContentHead{
		Visibility:  models.VisibilityCustom,
		TargetAttrs: []models.TargetAttribute{{Category: models.AttrArea, Value: "north"}},
	}

	// No profile attributes at all: the item must stay invisible.
	scope := models.AccessScope{UserID: "u1", Role: models.RoleMember}
	assert.False(t, resolver.CanSee(scope, head))
}

func TestCanSeeAdminBypassesTargeting(t *testing.T) {
	resolver := NewAccessResolver(nil, nil, nil, nil, 0, nil)
	head := &models.ContentHead{Visibility: models.VisibilityGroups, TargetGroups: []string{"g1"}}

	assert.True(t, resolver.CanSee(models.AccessScope{UserID: "a1", Role: models.RoleAdmin}, head))
	assert.True(t, resolver.CanSee(models.AccessScope{UserID: "a2", Role: models.RoleSuperAdmin}, head))
}

func TestCanSeeUnknownVisibilityDenied(t *testing.T) {
	resolver := NewAccessResolver(nil, nil, nil, nil, 0, nil)
	head := &models.ContentHead{Visibility: "WEIRD"}

	assert.False(t, resolver.CanSee(models.AccessScope{UserID: "u1", Role: models.RoleMember}, head))
}
