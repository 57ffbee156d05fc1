package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/komunitas-api/internal/models"
)

func newEngagementRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEngagementInsertViewFirstTime(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO content_views")).
		WithArgs("announcement", "a1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE announcements SET views_count = views_count + 1 WHERE id = $1")).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	first, err := repo.InsertView(context.Background(), models.KindAnnouncement, "a1", "u1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementInsertViewDuplicateSkipsCounter(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO content_views")).
		WithArgs("announcement", "a1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	first, err := repo.InsertView(context.Background(), models.KindAnnouncement, "a1", "u1")
	require.NoError(t, err)
	assert.False(t, first)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementInsertViewUnknownKind(t *testing.T) {
	db, _, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	_, err := repo.InsertView(context.Background(), models.ContentKind("bogus"), "a1", "u1")
	require.Error(t, err)
}

func TestEngagementSetLikeInsertBumpsCounter(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO content_likes")).
		WithArgs("help_post", "h1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE help_posts SET likes_count = likes_count + 1 WHERE id = $1")).
		WithArgs("h1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT likes_count FROM help_posts WHERE id = $1")).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"likes_count"}).AddRow(4))
	mock.ExpectCommit()

	result, err := repo.SetLike(context.Background(), models.KindHelpPost, "h1", "u1", true)
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, 4, result.LikesCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementSetLikeRepeatLeavesCounter(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO content_likes")).
		WithArgs("help_post", "h1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT likes_count FROM help_posts WHERE id = $1")).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"likes_count"}).AddRow(4))
	mock.ExpectCommit()

	result, err := repo.SetLike(context.Background(), models.KindHelpPost, "h1", "u1", true)
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, 4, result.LikesCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementSetLikeUnlikeDecrements(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM content_likes WHERE content_kind = $1 AND content_id = $2 AND user_id = $3")).
		WithArgs("event", "e1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events SET likes_count = likes_count - 1 WHERE id = $1")).
		WithArgs("e1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT likes_count FROM events WHERE id = $1")).
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"likes_count"}).AddRow(0))
	mock.ExpectCommit()

	result, err := repo.SetLike(context.Background(), models.KindEvent, "e1", "u1", false)
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.Equal(t, 0, result.LikesCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementInsertCommentBumpsCounter(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO content_comments")).
		WithArgs(sqlmock.AnyArg(), "help_post", "h1", "u1", nil, "hello", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE help_posts SET comments_count = comments_count + 1 WHERE id = $1")).
		WithArgs("h1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	comment := &models.Comment{ContentKind: models.KindHelpPost, ContentID: "h1", AuthorID: "u1", Body: "hello"}
	require.NoError(t, repo.InsertComment(context.Background(), comment))
	assert.NotEmpty(t, comment.ID)
	assert.False(t, comment.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementListComments(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "content_kind", "content_id", "author_id", "author_name", "parent_id", "body", "created_at", "likes_count", "liked_by_viewer"}).
		AddRow("c1", "help_post", "h1", "u1", "Member One", nil, "top", now, 2, true).
		AddRow("c2", "help_post", "h1", "u2", "Member Two", "c1", "reply", now, 0, false)
	mock.ExpectQuery("SELECT c.id, c.content_kind").
		WithArgs("help_post", "h1", "viewer").
		WillReturnRows(rows)

	comments, err := repo.ListComments(context.Background(), models.KindHelpPost, "h1", "viewer")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, 2, comments[0].LikesCount)
	assert.True(t, comments[0].LikedByViewer)
	require.NotNil(t, comments[1].ParentID)
	assert.Equal(t, "c1", *comments[1].ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementViewerFlags(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs("event", "e1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"viewed", "liked"}).AddRow(true, false))

	viewed, liked, err := repo.ViewerFlags(context.Background(), models.KindEvent, "e1", "u1")
	require.NoError(t, err)
	assert.True(t, viewed)
	assert.False(t, liked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngagementListEngagement(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"user_id", "full_name", "viewed_at", "liked_at", "comments"}).
		AddRow("u1", "Member One", now, nil, 3).
		AddRow("u2", "Member Two", now, now, 0)
	mock.ExpectQuery("SELECT u.id AS user_id").
		WithArgs("announcement", "a1").
		WillReturnRows(rows)

	report, err := repo.ListEngagement(context.Background(), models.KindAnnouncement, "a1")
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, 3, report[0].Comments)
	assert.Nil(t, report[0].LikedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
