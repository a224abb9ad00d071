package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/dialtone/pkg/adapters/file"
	"github.com/aretw0/dialtone/pkg/domain"
	"github.com/aretw0/dialtone/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.SessionStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := &domain.Session{CallID: "CA1", FlowID: "support", CurrentNodeID: "collect_reason",
		Variables: map[string]string{"reason": "sales"}}
	require.NoError(t, file.New(dir).Save(ctx, "CA1", s))

	loaded, err := file.New(dir).Load(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, "sales", loaded.Variables["reason"])
}

func TestFileStore_IgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "CA1", &domain.Session{CallID: "CA1"}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-CA2-123"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.json"), 0o755))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CA1"}, ids)
}

func TestFileStore_RejectsPathLikeIDs(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", `a\b`, ".."} {
		assert.Error(t, store.Save(ctx, id, &domain.Session{}), "id %q", id)
	}
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
