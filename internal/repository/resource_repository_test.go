package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhive/studyhive-api/internal/models"
)

func resourceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "description", "type", "subject", "department", "semester", "file_url", "file_name", "file_size", "external_url", "uploader_id", "uploader_name", "tags", "views", "likes", "comments", "downloads", "created_at", "updated_at"})
}

func TestResourceFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	now := time.Now()
	rows := resourceRows().
		AddRow("r1", "Algorithms notes", "", string(models.ResourceNote), "Algorithms", "CSE", 3, "/files/r1.pdf", "r1.pdf", 1024, "", "u1", "Prof. Rao", "dsa", 10, 2, 1, 4, now, now)
	mock.ExpectQuery("SELECT r.id, r.title, .+ FROM resources r JOIN users u ON u.id = r.uploader_id WHERE r.id = \\$1").
		WithArgs("r1").
		WillReturnRows(rows)

	res, err := repo.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Algorithms notes", res.Title)
	assert.Equal(t, 10, res.Stats.Views)
	assert.Equal(t, 4, res.Stats.Downloads)
	assert.Equal(t, "Prof. Rao", res.Uploader)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLikeInsertPath(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	rows := sqlmock.NewRows([]string{"likes", "inserted"}).AddRow(5, 1)
	mock.ExpectQuery("INSERT INTO resource_likes").
		WillReturnRows(rows)

	result, err := repo.SetLike(context.Background(), "r1", "u1", true)
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.True(t, result.Changed)
	assert.Equal(t, 5, result.Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLikeRepeatLeavesRowAlone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	rows := sqlmock.NewRows([]string{"likes", "inserted"}).AddRow(5, 0)
	mock.ExpectQuery("INSERT INTO resource_likes").
		WillReturnRows(rows)

	result, err := repo.SetLike(context.Background(), "r1", "u1", true)
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.False(t, result.Changed)
	assert.Equal(t, 5, result.Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLikeRemovePath(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	deleteRows := sqlmock.NewRows([]string{"likes", "removed"}).AddRow(3, 1)
	mock.ExpectQuery("DELETE FROM resource_likes").
		WillReturnRows(deleteRows)

	result, err := repo.SetLike(context.Background(), "r1", "u1", false)
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.True(t, result.Changed)
	assert.Equal(t, 3, result.Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLikeRemoveWithoutRowKeepsCounter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	deleteRows := sqlmock.NewRows([]string{"likes", "removed"}).AddRow(0, 0)
	mock.ExpectQuery("DELETE FROM resource_likes").
		WillReturnRows(deleteRows)

	result, err := repo.SetLike(context.Background(), "r1", "u1", false)
	require.NoError(t, err)
	assert.False(t, result.Liked)
	assert.False(t, result.Changed)
	assert.Equal(t, 0, result.Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordViewBumpsTotalAndBucket(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	viewRows := sqlmock.NewRows([]string{"views"}).AddRow(11)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE resources SET views = views + 1, updated_at = $2 WHERE id = $1 RETURNING views")).
		WillReturnRows(viewRows)
	mock.ExpectExec("INSERT INTO resource_daily_views").
		WillReturnResult(sqlmock.NewResult(0, 1))

	views, err := repo.RecordView(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 11, views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustCommentCountClampsAtZero(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	rows := sqlmock.NewRows([]string{"comments"}).AddRow(0)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE resources SET comments = GREATEST(comments + $2, 0), updated_at = $3 WHERE id = $1 RETURNING comments")).
		WillReturnRows(rows)

	comments, err := repo.AdjustCommentCount(context.Background(), "r1", -1)
	require.NoError(t, err)
	assert.Equal(t, 0, comments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListResourcesWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	now := time.Now()
	listRows := resourceRows().
		AddRow("r1", "Placements guide", "", string(models.ResourceDocument), "Aptitude", "CSE", 0, "/files/g.pdf", "g.pdf", 2048, "", "u2", "Dr. Iyer", "", 0, 0, 0, 0, now, now)
	mock.ExpectQuery("SELECT r.id, r.title, .+ FROM resources r JOIN users u ON u.id = r.uploader_id WHERE 1=1 AND r.semester = \\$1 ORDER BY r.created_at DESC").
		WithArgs(0).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM resources r JOIN users u ON u.id = r.uploader_id WHERE 1=1").
		WithArgs(0).
		WillReturnRows(countRows)

	semester := 0
	resources, total, err := repo.List(context.Background(), models.ResourceFilter{Semester: &semester})
	require.NoError(t, err)
	assert.Len(t, resources, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.PlacementSemester, resources[0].Semester)
	assert.NoError(t, mock.ExpectationsWereMet())
}
