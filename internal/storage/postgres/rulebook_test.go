package postgres_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/autohtn/internal/rules"
	"github.com/cory-johannsen/autohtn/internal/storage/postgres"
	"github.com/cory-johannsen/autohtn/internal/testutil"
)

func woodRulebook(t *testing.T, time int) *rules.Rulebook {
	t.Helper()
	rb, err := rules.Parse([]byte(fmt.Sprintf(`{
	  "Items": ["wood"], "Tools": [],
	  "Recipes": {"gather wood": {"Produces": {"wood": 1}, "Time": 1}},
	  "Problem": {"Goal": {"wood": 3}, "Time": %d}}`, time)))
	require.NoError(t, err)
	return rb
}

func TestValidName(t *testing.T) {
	assert.True(t, postgres.ValidName("crafting"))
	assert.True(t, postgres.ValidName("minecraft-1.20_v2"))
	assert.False(t, postgres.ValidName(""))
	assert.False(t, postgres.ValidName("with space"))
	assert.False(t, postgres.ValidName("semi;colon"))
}

func TestProperty_ValidNameAcceptsSafeNames(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z0-9._-]{1,128}`).Draw(rt, "name")
		if !postgres.ValidName(name) {
			rt.Fatalf("ValidName(%q) = false", name)
		}
	})
}

func TestStoredRulebook_ParsesDocument(t *testing.T) {
	rb := woodRulebook(t, 5)
	stored := postgres.StoredRulebook{Name: "wood", Digest: rb.Digest, Document: rb.Source}
	got, err := stored.Rulebook()
	require.NoError(t, err)
	assert.Equal(t, rb.Digest, got.Digest)

	_, err = postgres.StoredRulebook{Name: "broken", Document: []byte("{")}.Rulebook()
	assert.ErrorIs(t, err, rules.ErrInvalidRules)
}

func TestRulebookRepository_RoundTrip(t *testing.T) {
	repo := postgres.NewRulebookRepository(testutil.NewMigratedPool(t))
	ctx := context.Background()

	data, err := os.ReadFile(filepath.Join("..", "..", "rules", "testdata", "crafting.json"))
	require.NoError(t, err)
	rb, err := rules.Parse(data)
	require.NoError(t, err)

	stored, err := repo.Put(ctx, "minecraft", rb)
	require.NoError(t, err)
	assert.Equal(t, "minecraft", stored.Name)
	assert.Equal(t, rb.Digest, stored.Digest)
	assert.False(t, stored.CreatedAt.IsZero())

	loaded, err := repo.Load(ctx, "minecraft")
	require.NoError(t, err)
	assert.Equal(t, rb.Digest, loaded.Digest)
	assert.Equal(t, rb.Recipes, loaded.Recipes)
}

func TestRulebookRepository_PutReplaces(t *testing.T) {
	repo := postgres.NewRulebookRepository(testutil.NewMigratedPool(t))
	ctx := context.Background()

	_, err := repo.Put(ctx, "wood", woodRulebook(t, 5))
	require.NoError(t, err)
	second := woodRulebook(t, 9)
	_, err = repo.Put(ctx, "wood", second)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "wood")
	require.NoError(t, err)
	assert.Equal(t, second.Digest, got.Digest)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Document)
}

func TestRulebookRepository_CreateRejectsDuplicate(t *testing.T) {
	repo := postgres.NewRulebookRepository(testutil.NewMigratedPool(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, "wood", woodRulebook(t, 5))
	require.NoError(t, err)
	_, err = repo.Create(ctx, "wood", woodRulebook(t, 6))
	assert.ErrorIs(t, err, postgres.ErrRulebookExists)
}

func TestRulebookRepository_ListOrderedByName(t *testing.T) {
	repo := postgres.NewRulebookRepository(testutil.NewMigratedPool(t))
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := repo.Put(ctx, name, woodRulebook(t, 5))
		require.NoError(t, err)
	}
	list, err := repo.List(ctx)
	require.NoError(t, err)
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRulebookRepository_NotFound(t *testing.T) {
	repo := postgres.NewRulebookRepository(testutil.NewMigratedPool(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, postgres.ErrRulebookNotFound)
	_, err = repo.Load(ctx, "missing")
	assert.ErrorIs(t, err, postgres.ErrRulebookNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), postgres.ErrRulebookNotFound)

	_, err = repo.Put(ctx, "gone", woodRulebook(t, 5))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "gone"))
	_, err = repo.Get(ctx, "gone")
	assert.ErrorIs(t, err, postgres.ErrRulebookNotFound)
}

func TestRulebookRepository_RejectsBadInput(t *testing.T) {
	// No database needed: validation happens before any query.
	repo := postgres.NewRulebookRepository(nil)
	ctx := context.Background()

	_, err := repo.Put(ctx, "bad name", woodRulebook(t, 5))
	assert.ErrorIs(t, err, postgres.ErrInvalidName)
	_, err = repo.Create(ctx, "", woodRulebook(t, 5))
	assert.ErrorIs(t, err, postgres.ErrInvalidName)
	_, err = repo.Put(ctx, "empty", &rules.Rulebook{})
	assert.Error(t, err)
}
