package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/komunitas-api/internal/models"
)

func announcementRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "author_id", "author_name", "title", "body", "visibility",
		"is_pinned", "is_archived", "images", "views_count", "likes_count",
		"comments_count", "created_at", "updated_at",
	})
}

func TestAnnouncementListDefaultsHideArchived(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(
		regexp.QuoteMeta("a.is_archived = FALSE") + "[\\s\\S]*" +
			regexp.QuoteMeta("ORDER BY a.is_pinned DESC, a.created_at DESC, a.id ASC") + "[\\s\\S]*" +
			regexp.QuoteMeta("LIMIT 20 OFFSET 0")).
		WillReturnRows(announcementRows().
			AddRow("an-1", "u1", "Dewi", "Town hall", "Agenda inside", "PUBLIC",
				false, false, "{}", 3, 1, 0, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements a WHERE a.is_archived = FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	announcements, total, err := repo.List(context.Background(), models.AnnouncementFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, announcements, 1)
	assert.Equal(t, "Town hall", announcements[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementListAppliesVisibilityClauseForMembers(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	area := "north"
	scope := &models.AccessScope{
		UserID:   "u1",
		Role:     models.RoleMember,
		GroupIDs: []string{"g1"},
		Area:     &area,
	}

	mock.ExpectQuery(
		regexp.QuoteMeta("a.visibility = 'PUBLIC'") + "[\\s\\S]*" +
			regexp.QuoteMeta("a.author_id = $1") + "[\\s\\S]*" +
			regexp.QuoteMeta("a.visibility = 'GROUPS'") + "[\\s\\S]*" +
			regexp.QuoteMeta("a.visibility = 'CUSTOM'")).
		WithArgs("u1", "announcement", pq.Array([]string{"g1"}), "announcement", "area", "north").
		WillReturnRows(announcementRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements a")).
		WithArgs("u1", "announcement", pq.Array([]string{"g1"}), "announcement", "area", "north").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.AnnouncementFilter{Scope: scope})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementListHonoursPageSizeAsGiven(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 150 OFFSET 150")).
		WillReturnRows(announcementRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements a")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	filter := models.AnnouncementFilter{}
	filter.Page = 2
	filter.PageSize = 150
	_, _, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementListSkipsVisibilityClauseForAdmins(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	scope := &models.AccessScope{UserID: "adm", Role: models.RoleAdmin}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1")).
		WillReturnRows(announcementRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements a WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.AnnouncementFilter{
		Scope:           scope,
		IncludeArchived: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementListSearchAndGroupFilter(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(
		regexp.QuoteMeta("a.title ILIKE $1 OR a.body ILIKE $1") + "[\\s\\S]*" +
			regexp.QuoteMeta("tg.content_kind = $2 AND tg.content_id = a.id AND tg.group_id = $3")).
		WithArgs("%dues%", "announcement", "g7").
		WillReturnRows(announcementRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements a")).
		WithArgs("%dues%", "announcement", "g7").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	filter := models.AnnouncementFilter{IncludeArchived: true}
	filter.Search = "dues"
	filter.GroupID = "g7"
	_, _, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementGetByIDLoadsTargets(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).
		WithArgs("an-1").
		WillReturnRows(announcementRows().
			AddRow("an-1", "u1", "Dewi", "Town hall", "Agenda inside", "GROUPS",
				true, false, "{}", 3, 1, 0, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT group_id FROM content_target_groups WHERE content_kind = $1 AND content_id = $2")).
		WithArgs("announcement", "an-1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow("g1").AddRow("g2"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category, value FROM content_target_attrs WHERE content_kind = $1 AND content_id = $2")).
		WithArgs("announcement", "an-1").
		WillReturnRows(sqlmock.NewRows([]string{"category", "value"}).AddRow("area", "north"))

	announcement, err := repo.GetByID(context.Background(), "an-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, announcement.TargetGroups)
	require.Len(t, announcement.TargetAttrs, 1)
	assert.Equal(t, models.AttrArea, announcement.TargetAttrs[0].Category)
	assert.True(t, announcement.IsPinned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementCreateWritesTargetsInOneTx(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO announcements")).
		WithArgs(sqlmock.AnyArg(), "u1", "Town hall", "Agenda inside", "GROUPS",
			false, false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM content_target_groups WHERE content_kind = $1 AND content_id = $2")).
		WithArgs("announcement", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM content_target_attrs WHERE content_kind = $1 AND content_id = $2")).
		WithArgs("announcement", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO content_target_groups")).
		WithArgs("announcement", sqlmock.AnyArg(), "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	announcement := &models.Announcement{
		AuthorID:     "u1",
		Title:        "Town hall",
		Body:         "Agenda inside",
		Visibility:   models.VisibilityGroups,
		TargetGroups: []string{"g1"},
	}
	err := repo.Create(context.Background(), announcement)
	require.NoError(t, err)
	assert.NotEmpty(t, announcement.ID)
	assert.False(t, announcement.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementCreateRollsBackOnTargetFailure(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO announcements")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM content_target_groups")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Announcement{
		AuthorID:   "u1",
		Title:      "Town hall",
		Body:       "Agenda inside",
		Visibility: models.VisibilityPublic,
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementSetArchived(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE announcements SET is_archived = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("an-1", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetArchived(context.Background(), "an-1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementDeleteCascadesLedgerRows(t *testing.T) {
	db, mock, cleanup := newEngagementRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	cascades := []string{
		"DELETE FROM comment_likes",
		"DELETE FROM content_comments",
		"DELETE FROM content_likes",
		"DELETE FROM content_views",
		"DELETE FROM content_target_groups",
		"DELETE FROM content_target_attrs",
	}
	for _, stmt := range cascades {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).
			WithArgs("announcement", "an-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM announcements WHERE id = $1")).
		WithArgs("an-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "an-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
