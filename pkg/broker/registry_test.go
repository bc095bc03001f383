package broker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantStore_EnsureParticipant(t *testing.T) {
	store := NewParticipantStore(newTestDB(t))

	// First call creates.
	participant, created, err := store.EnsureParticipant("web")
	require.NoError(t, err)
	require.NotNil(t, participant)
	assert.True(t, created)
	assert.Equal(t, "web", participant.Name)
	assert.Equal(t, "main", participant.MainBranchName)

	// Second call returns the existing row.
	again, created, err := store.EnsureParticipant("web")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, participant.ID, again.ID)

	// Names are case-sensitive.
	other, created, err := store.EnsureParticipant("Web")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, participant.ID, other.ID)
}

func TestParticipantStore_GetParticipant_NotFound(t *testing.T) {
	store := NewParticipantStore(newTestDB(t))

	got, err := store.GetParticipant("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParticipantStore_EnsureVersion(t *testing.T) {
	store := NewParticipantStore(newTestDB(t))

	// Creates the participant transitively.
	version, created, err := store.EnsureVersion("web", "1.0.0", "feat/x", "https://ci/1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "1.0.0", version.Number)
	assert.Equal(t, "feat/x", version.Branch)
	assert.Equal(t, "https://ci/1", version.BuildURL)

	participant, err := store.GetParticipant("web")
	require.NoError(t, err)
	require.NotNil(t, participant)
	assert.Equal(t, participant.ID, version.ParticipantID)

	// Branch and build URL are creation-only.
	again, created, err := store.EnsureVersion("web", "1.0.0", "other-branch", "https://ci/2")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, version.ID, again.ID)
	assert.Equal(t, "feat/x", again.Branch)
	assert.Equal(t, "https://ci/1", again.BuildURL)
}

func TestParticipantStore_ListVersions(t *testing.T) {
	store := NewParticipantStore(newTestDB(t))

	for i := 1; i <= 3; i++ {
		_, _, err := store.EnsureVersion("web", fmt.Sprintf("1.0.%d", i), "", "")
		require.NoError(t, err)
	}
	_, _, err := store.EnsureVersion("other", "9.9.9", "", "")
	require.NoError(t, err)

	versions, err := store.ListVersions("web")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	// Newest first.
	assert.Equal(t, "1.0.3", versions[0].Number)
	assert.Equal(t, "1.0.2", versions[1].Number)
	assert.Equal(t, "1.0.1", versions[2].Number)

	// Unknown participant yields an empty list.
	versions, err = store.ListVersions("nonexistent")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestParticipantStore_TagVersion(t *testing.T) {
	store := NewParticipantStore(newTestDB(t))

	_, _, err := store.EnsureVersion("web", "1.0.0", "", "")
	require.NoError(t, err)

	tag, err := store.TagVersion("web", "1.0.0", "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", tag.Name)

	// Idempotent: same tag again returns the existing row.
	again, err := store.TagVersion("web", "1.0.0", "prod")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, again.ID)

	// Missing version fails with ErrNotFound.
	_, err = store.TagVersion("web", "2.0.0", "prod")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParticipantStore_ResolveVersionByTag(t *testing.T) {
	store := NewParticipantStore(newTestDB(t))

	_, _, err := store.EnsureVersion("web", "1.0.0", "", "")
	require.NoError(t, err)
	_, _, err = store.EnsureVersion("web", "1.1.0", "", "")
	require.NoError(t, err)

	_, err = store.TagVersion("web", "1.0.0", "prod")
	require.NoError(t, err)
	_, err = store.TagVersion("web", "1.1.0", "prod")
	require.NoError(t, err)

	// The most recently created version carrying the tag wins.
	resolved, err := store.ResolveVersionByTag("web", "prod")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "1.1.0", resolved.Number)

	// Absent tag resolves to nil.
	resolved, err = store.ResolveVersionByTag("web", "staging")
	require.NoError(t, err)
	assert.Nil(t, resolved)

	// Tags are scoped per participant.
	_, _, err = store.EnsureVersion("other", "5.0.0", "", "")
	require.NoError(t, err)
	_, err = store.TagVersion("other", "5.0.0", "prod")
	require.NoError(t, err)

	resolved, err = store.ResolveVersionByTag("web", "prod")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "1.1.0", resolved.Number)
}

func TestParticipantStore_VersionHasTag(t *testing.T) {
	store := NewParticipantStore(newTestDB(t))

	version, _, err := store.EnsureVersion("web", "1.0.0", "", "")
	require.NoError(t, err)
	_, err = store.TagVersion("web", "1.0.0", "prod")
	require.NoError(t, err)

	hasTag, err := store.VersionHasTag(version.ID, "prod")
	require.NoError(t, err)
	assert.True(t, hasTag)

	hasTag, err = store.VersionHasTag(version.ID, "staging")
	require.NoError(t, err)
	assert.False(t, hasTag)
}
