package repository

import (
	"context"
	"errors"
	"testing"

	"xclone/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionLedger_Likes(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewInteractionLedger(db)
	ctx := context.Background()
	post := createPost(t, db, "alice", "likeable")

	liked, err := ledger.HasLiked(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.False(t, liked)

	require.NoError(t, ledger.AddLike(ctx, post.ID, "bob"))
	liked, err = ledger.HasLiked(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.True(t, liked)

	err = ledger.AddLike(ctx, post.ID, "bob")
	assert.True(t, models.HasCode(err, models.CodeConflict))

	var rows int64
	require.NoError(t, db.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	removed, err := ledger.RemoveLike(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = ledger.RemoveLike(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestInteractionLedger_Retweets(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewInteractionLedger(db)
	ctx := context.Background()
	post := createPost(t, db, "alice", "shareable")

	require.NoError(t, ledger.AddRetweet(ctx, post.ID, "bob"))
	require.NoError(t, ledger.AddRetweet(ctx, post.ID, "carol"))
	assert.True(t, models.HasCode(ledger.AddRetweet(ctx, post.ID, "carol"), models.CodeConflict))

	retweeted, err := ledger.HasRetweeted(ctx, post.ID, "carol")
	require.NoError(t, err)
	assert.True(t, retweeted)

	liked, err := ledger.HasLiked(ctx, post.ID, "carol")
	require.NoError(t, err)
	assert.False(t, liked)

	removed, err := ledger.RemoveRetweet(ctx, post.ID, "carol")
	require.NoError(t, err)
	assert.True(t, removed)

	retweeted, err = ledger.HasRetweeted(ctx, post.ID, "carol")
	require.NoError(t, err)
	assert.False(t, retweeted)
}

func TestInteractionLedger_Postgres_UniqueViolationIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	ledger := NewInteractionLedger(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "post_likes" .* ON CONFLICT DO NOTHING RETURNING "id"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err := ledger.AddLike(context.Background(), 1, "bob")
	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionLedger_Postgres_NoRowInsertedIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	ledger := NewInteractionLedger(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "retweets" .* ON CONFLICT DO NOTHING RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	err := ledger.AddRetweet(context.Background(), 1, "bob")
	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassifyError(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))

	notFound := models.NewNotFoundError("Post", 1)
	assert.Same(t, notFound, ClassifyError(notFound))

	assert.True(t, models.HasCode(ClassifyError(&pgconn.ConnectError{}), models.CodeStoreUnavailable))
	assert.True(t, models.HasCode(ClassifyError(context.DeadlineExceeded), models.CodeStoreUnavailable))
	assert.True(t, models.HasCode(ClassifyError(errors.New("syntax error")), models.CodeInternal))
}
