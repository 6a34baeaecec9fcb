package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/quest/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCheckpointData(t *testing.T, store *SQLiteStorage) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.EnsureUser(ctx, "u1", "Ada"))
	for _, company := range []string{"Acme", "Initech", "Globex"} {
		_, err := store.SaveApplication(ctx, "u1", &model.Application{Company: company, Position: "SWE", Status: model.StatusApplied})
		require.NoError(t, err)
	}
	require.NoError(t, store.UnlockAchievement(ctx, "u1", "First Steps"))
}

func TestCheckpointManager_Create(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedCheckpointData(t, store)

	manager, err := store.NewCheckpointManager()
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		errType     error
		name        string
		tag         string
		description string
		wantErr     bool
	}{
		{
			name:        "with tag",
			tag:         "before-import",
			description: "Before import",
		},
		{
			name:        "generated tag",
			description: "Generated",
		},
		{
			name:    "path traversal",
			tag:     "../escape",
			wantErr: true,
			errType: ErrInvalidCheckpointID,
		},
		{
			name:    "duplicate",
			tag:     "before-import",
			wantErr: true,
			errType: ErrCheckpointExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := manager.Create(ctx, tt.tag, tt.description)
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.errType)
				return
			}

			require.NoError(t, err)
			if tt.tag != "" {
				assert.Equal(t, tt.tag, info.ID)
			} else {
				assert.Contains(t, info.ID, "checkpoint-")
			}
			assert.Equal(t, tt.description, info.Description)
			assert.Positive(t, info.FileSize)
			assert.Equal(t, 1, info.Users)
			assert.Equal(t, 3, info.Applications)
			assert.Equal(t, 1, info.Achievements)
			assert.Equal(t, ExpectedSchemaVersion, info.SchemaVersion)
			assert.False(t, info.IsAuto)

			dir := filepath.Join(filepath.Dir(store.Path()), "checkpoints")
			_, err = os.Stat(filepath.Join(dir, info.ID+".db"))
			assert.NoError(t, err)
			_, err = os.Stat(filepath.Join(dir, info.ID+".meta.json"))
			assert.NoError(t, err)
		})
	}
}

func TestCheckpointManager_ListAndDelete(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	seedCheckpointData(t, store)

	manager, err := store.NewCheckpointManager()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.Create(ctx, "first", "")
	require.NoError(t, err)
	_, err = manager.Create(ctx, "second", "")
	require.NoError(t, err)

	list, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].CreatedAt.Before(list[1].CreatedAt), "newest first")

	require.NoError(t, manager.Delete(ctx, "first"))
	assert.ErrorIs(t, manager.Delete(ctx, "first"), ErrCheckpointNotFound)

	list, err = manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].ID)
}

func TestCheckpointManager_AutoCheckpointPrunes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	manager, err := store.NewCheckpointManager()
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < maxAutoCheckpoints+2; i++ {
		info, err := manager.create(ctx, "auto-import-"+string(rune('a'+i)), "auto", true)
		require.NoError(t, err)
		assert.True(t, info.IsAuto)
	}
	require.NoError(t, manager.pruneAuto(ctx))

	list, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, maxAutoCheckpoints)
}

func TestCheckpointManager_Restore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "quest.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	seedCheckpointData(t, store)

	manager, err := store.NewCheckpointManager()
	require.NoError(t, err)
	_, err = manager.Create(ctx, "three-apps", "")
	require.NoError(t, err)

	_, err = store.SaveApplication(ctx, "u1", &model.Application{Company: "Umbrella", Position: "SWE", Status: model.StatusApplied})
	require.NoError(t, err)

	assert.ErrorIs(t, manager.Restore(ctx, "missing"), ErrCheckpointNotFound)

	// Restore closes the handle.
	require.NoError(t, manager.Restore(ctx, "three-apps"))

	reopened, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	apps, err := reopened.GetApplications(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, apps, 3)
}
