package service

import (
	"context"
	"os"
	"testing"
	"time"

	"todone/internal/database"
	"todone/internal/events"
	"todone/internal/models"
	"todone/internal/repository"
	"todone/internal/state"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCollabService(t *testing.T) (*CollabService, *database.DB) {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	presence := repository.NewMemoryPresenceRepository(time.Hour)
	svc := NewCollabService(db, state.New(), presence, events.NewEventBus(), &logger)
	return svc, db
}

func TestAddComment(t *testing.T) {
	svc, db := newCollabService(t)
	ctx := context.Background()

	comment := &models.Comment{TaskID: "t1", AuthorID: "u1", Content: "looks done"}
	require.NoError(t, svc.AddComment(ctx, comment))
	assert.NotEmpty(t, comment.ID)

	got, err := svc.GetComments(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "looks done", got[0].Content)

	items, err := db.ListPendingQueueItems(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.CollectionComments, items[0].Collection)
}

func TestAddComment_RateLimited(t *testing.T) {
	svc, _ := newCollabService(t)
	svc.rateLimit = 2
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		comment := &models.Comment{TaskID: "t1", AuthorID: "spammer", Content: "ping"}
		require.NoError(t, svc.AddComment(ctx, comment))
	}

	err := svc.AddComment(ctx, &models.Comment{TaskID: "t1", AuthorID: "spammer", Content: "ping"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestShareProject(t *testing.T) {
	svc, db := newCollabService(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertProject(ctx, &models.Project{ID: "p1", Name: "Groceries"}))
	require.NoError(t, svc.ShareProject(ctx, "p1", "u2"))

	project, err := db.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, project.IsShared)

	err = svc.ShareProject(ctx, "absent", "u2")
	assert.Error(t, err)
}

func TestPresenceLifecycle(t *testing.T) {
	svc, _ := newCollabService(t)
	ctx := context.Background()

	require.NoError(t, svc.Touch(ctx, "p1", "u1"))
	require.NoError(t, svc.Touch(ctx, "p1", "u2"))

	active, err := svc.ActiveCollaborators(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, svc.Leave(ctx, "p1", "u1"))
	active, err = svc.ActiveCollaborators(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "u2", active[0].UserID)
}
