package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/komunitas-api/internal/models"
	appErrors "github.com/noah-isme/komunitas-api/pkg/errors"
)

type mockHeadReader struct {
	heads map[string]*models.ContentHead
}

func headKey(kind models.ContentKind, id string) string { return string(kind) + "/" + id }

func (m *mockHeadReader) Head(ctx context.Context, kind models.ContentKind, id string) (*models.ContentHead, error) {
	head, ok := m.heads[headKey(kind, id)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return head, nil
}

type mockLedger struct {
	views        map[string]map[string]bool
	likes        map[string]map[string]bool
	comments     map[string]*models.Comment
	commentLikes map[string]map[string]bool
	nextID       int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		views:        make(map[string]map[string]bool),
		likes:        make(map[string]map[string]bool),
		comments:     make(map[string]*models.Comment),
		commentLikes: make(map[string]map[string]bool),
	}
}

func (m *mockLedger) InsertView(ctx context.Context, kind models.ContentKind, contentID, userID string) (bool, error) {
	key := headKey(kind, contentID)
	if m.views[key] == nil {
		m.views[key] = make(map[string]bool)
	}
	if m.views[key][userID] {
		return false, nil
	}
	m.views[key][userID] = true
	return true, nil
}

func (m *mockLedger) SetLike(ctx context.Context, kind models.ContentKind, contentID, userID string, want bool) (*models.LikeResult, error) {
	key := headKey(kind, contentID)
	if m.likes[key] == nil {
		m.likes[key] = make(map[string]bool)
	}
	if want {
		m.likes[key][userID] = true
	} else {
		delete(m.likes[key], userID)
	}
	return &models.LikeResult{Liked: want, LikesCount: len(m.likes[key])}, nil
}

func (m *mockLedger) InsertComment(ctx context.Context, comment *models.Comment) error {
	m.nextID++
	comment.ID = string(rune('a' + m.nextID))
	m.comments[comment.ID] = comment
	return nil
}

func (m *mockLedger) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	comment, ok := m.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return comment, nil
}

func (m *mockLedger) ListComments(ctx context.Context, kind models.ContentKind, contentID, viewerID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, c := range m.comments {
		if c.ContentKind == kind && c.ContentID == contentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockLedger) SetCommentLike(ctx context.Context, commentID, userID string, want bool) (*models.LikeResult, error) {
	if m.commentLikes[commentID] == nil {
		m.commentLikes[commentID] = make(map[string]bool)
	}
	if want {
		m.commentLikes[commentID][userID] = true
	} else {
		delete(m.commentLikes[commentID], userID)
	}
	return &models.LikeResult{Liked: want, LikesCount: len(m.commentLikes[commentID])}, nil
}

func (m *mockLedger) ViewerFlags(ctx context.Context, kind models.ContentKind, contentID, userID string) (bool, bool, error) {
	key := headKey(kind, contentID)
	return m.views[key][userID], m.likes[key][userID], nil
}

type mockDeniedCounter struct {
	byKind map[string]int
}

func (m *mockDeniedCounter) IncAccessDenied(kind string) {
	if m.byKind == nil {
		m.byKind = make(map[string]int)
	}
	m.byKind[kind]++
}

func newTestResolver() *AccessResolver {
	return NewAccessResolver(nil, nil, nil, nil, 0, nil)
}

func memberScope(userID string, groups ...string) models.AccessScope {
	return models.AccessScope{UserID: userID, Role: models.RoleMember, GroupIDs: groups}
}

func TestRecordViewFirstThenRepeat(t *testing.T) {
	heads := &mockHeadReader{heads: map[string]*models.ContentHead{
		headKey(models.KindAnnouncement, "a1"): {
			ID: "a1", AuthorID: "admin", Visibility: models.VisibilityPublic, ContentKind: models.KindAnnouncement,
		},
	}}
	ledger := newMockLedger()
	svc := NewEngagementService(heads, ledger, newTestResolver(), nil, nil, nil)

	first, err := svc.RecordView(context.Background(), memberScope("u1"), models.KindAnnouncement, "a1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := svc.RecordView(context.Background(), memberScope("u1"), models.KindAnnouncement, "a1")
	require.NoError(t, err)
	assert.False(t, again)
}

func TestEngagementDeniedCollapsesToNotFound(t *testing.T) {
	heads := &mockHeadReader{heads: map[string]*models.ContentHead{
		headKey(models.KindAnnouncement, "a1"): {
			ID: "a1", AuthorID: "admin",
			Visibility:   models.VisibilityGroups,
			TargetGroups: []string{"g1"},
			ContentKind:  models.KindAnnouncement,
		},
	}}
	ledger := newMockLedger()
	counter := &mockDeniedCounter{}
	svc := NewEngagementService(heads, ledger, newTestResolver(), counter, nil, nil)

	_, err := svc.RecordView(context.Background(), memberScope("outsider", "g9"), models.KindAnnouncement, "a1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, 1, counter.byKind["announcement"])

	// A genuinely missing item produces the same outward error.
	_, err = svc.RecordView(context.Background(), memberScope("outsider", "g9"), models.KindAnnouncement, "nope")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEngagementOwnerSeesOwnTargetedItem(t *testing.T) {
	heads := &mockHeadReader{heads: map[string]*models.ContentHead{
		headKey(models.KindHelpPost, "h1"): {
			ID: "h1", AuthorID: "author",
			Visibility:   models.VisibilityGroups,
			TargetGroups: []string{"g1"},
			Status:       models.StatusPending,
			ContentKind:  models.KindHelpPost,
		},
	}}
	ledger := newMockLedger()
	svc := NewEngagementService(heads, ledger, newTestResolver(), nil, nil, nil)

	// The author is outside the target set and the post is still pending,
	// but owners always reach their own items.
	first, err := svc.RecordView(context.Background(), memberScope("author"), models.KindHelpPost, "h1")
	require.NoError(t, err)
	assert.True(t, first)

	// Another group member cannot reach it while it is pending.
	_, err = svc.RecordView(context.Background(), memberScope("peer", "g1"), models.KindHelpPost, "h1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestToggleLikeRoundTrip(t *testing.T) {
	heads := &mockHeadReader{heads: map[string]*models.ContentHead{
		headKey(models.KindEvent, "e1"): {
			ID: "e1", AuthorID: "admin", Visibility: models.VisibilityPublic, ContentKind: models.KindEvent,
		},
	}}
	ledger := newMockLedger()
	svc := NewEngagementService(heads, ledger, newTestResolver(), nil, nil, nil)

	liked, err := svc.ToggleLike(context.Background(), memberScope("u1"), models.KindEvent, "e1", true)
	require.NoError(t, err)
	assert.True(t, liked.Liked)
	assert.Equal(t, 1, liked.LikesCount)

	unliked, err := svc.ToggleLike(context.Background(), memberScope("u1"), models.KindEvent, "e1", false)
	require.NoError(t, err)
	assert.False(t, unliked.Liked)
	assert.Equal(t, 0, unliked.LikesCount)
}

func TestAddCommentRejectsDeepNesting(t *testing.T) {
	heads := &mockHeadReader{heads: map[string]*models.ContentHead{
		headKey(models.KindHelpPost, "h1"): {
			ID: "h1", AuthorID: "author", Visibility: models.VisibilityPublic,
			Status: models.StatusApproved, ContentKind: models.KindHelpPost,
		},
	}}
	ledger := newMockLedger()
	svc := NewEngagementService(heads, ledger, newTestResolver(), nil, nil, nil)
	scope := memberScope("u1")

	top, err := svc.AddComment(context.Background(), scope, models.KindHelpPost, "h1", AddCommentRequest{Body: "top"})
	require.NoError(t, err)

	reply, err := svc.AddComment(context.Background(), scope, models.KindHelpPost, "h1", AddCommentRequest{Body: "reply", ParentID: &top.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)

	_, err = svc.AddComment(context.Background(), scope, models.KindHelpPost, "h1", AddCommentRequest{Body: "nested", ParentID: &reply.ID})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))
}

func TestAddCommentRejectsForeignParent(t *testing.T) {
	heads := &mockHeadReader{heads: map[string]*models.ContentHead{
		headKey(models.KindAnnouncement, "a1"): {
			ID: "a1", AuthorID: "admin", Visibility: models.VisibilityPublic, ContentKind: models.KindAnnouncement,
		},
		headKey(models.KindAnnouncement, "a2"): {
			ID: "a2", AuthorID: "admin", Visibility: models.VisibilityPublic, ContentKind: models.KindAnnouncement,
		},
	}}
	ledger := newMockLedger()
	svc := NewEngagementService(heads, ledger, newTestResolver(), nil, nil, nil)
	scope := memberScope("u1")

	top, err := svc.AddComment(context.Background(), scope, models.KindAnnouncement, "a1", AddCommentRequest{Body: "on a1"})
	require.NoError(t, err)

	_, err = svc.AddComment(context.Background(), scope, models.KindAnnouncement, "a2", AddCommentRequest{Body: "cross", ParentID: &top.ID})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestGetThreadZeroesCommentLikesOutsideHelpPosts(t *testing.T) {
	heads := &mockHeadReader{heads: map[string]*models.ContentHead{
		headKey(models.KindAnnouncement, "a1"): {
			ID: "a1", AuthorID: "admin", Visibility: models.VisibilityPublic, ContentKind: models.KindAnnouncement,
		},
	}}
	ledger := newMockLedger()
	svc := NewEngagementService(heads, ledger, newTestResolver(), nil, nil, nil)
	scope := memberScope("u1")

	top, err := svc.AddComment(context.Background(), scope, models.KindAnnouncement, "a1", AddCommentRequest{Body: "hello"})
	require.NoError(t, err)
	ledger.comments[top.ID].LikesCount = 5
	ledger.comments[top.ID].LikedByViewer = true

	threads, err := svc.GetThread(context.Background(), scope, models.KindAnnouncement, "a1", models.ThreadNewestFirst)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, 0, threads[0].Comment.LikesCount)
	assert.False(t, threads[0].Comment.LikedByViewer)
	assert.NotNil(t, threads[0].Replies)
}

func TestToggleCommentLikeOnlyOnHelpPosts(t *testing.T) {
	heads := &mockHeadReader{heads: map[string]*models.ContentHead{
		headKey(models.KindAnnouncement, "a1"): {
			ID: "a1", AuthorID: "admin", Visibility: models.VisibilityPublic, ContentKind: models.KindAnnouncement,
		},
		headKey(models.KindHelpPost, "h1"): {
			ID: "h1", AuthorID: "author", Visibility: models.VisibilityPublic,
			Status: models.StatusApproved, ContentKind: models.KindHelpPost,
		},
	}}
	ledger := newMockLedger()
	svc := NewEngagementService(heads, ledger, newTestResolver(), nil, nil, nil)
	scope := memberScope("u1")

	onAnnouncement, err := svc.AddComment(context.Background(), scope, models.KindAnnouncement, "a1", AddCommentRequest{Body: "no likes here"})
	require.NoError(t, err)
	_, err = svc.ToggleCommentLike(context.Background(), scope, onAnnouncement.ID, true)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	onHelpPost, err := svc.AddComment(context.Background(), scope, models.KindHelpPost, "h1", AddCommentRequest{Body: "likeable"})
	require.NoError(t, err)
	result, err := svc.ToggleCommentLike(context.Background(), scope, onHelpPost.ID, true)
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, 1, result.LikesCount)
}
