package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationStore_Record(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	store := NewVerificationStore(db)

	pact, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "x"), "")
	require.NoError(t, err)

	// Unknown sha fails with ErrNotFound.
	_, err = store.Record("api", "deadbeef", "2.0.0", true, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	verification, err := store.Record("api", pact.ContentSHA, "2.0.0", true, "https://ci/42")
	require.NoError(t, err)
	assert.Equal(t, pact.ID, verification.PactID)
	assert.True(t, verification.Success)
	assert.Equal(t, "https://ci/42", verification.BuildURL)

	// The provider version is created as a side effect.
	version, err := NewParticipantStore(db).GetVersion("api", "2.0.0")
	require.NoError(t, err)
	require.NotNil(t, version)
	assert.Equal(t, version.ID, verification.ProviderVersionID)

	// Repeat calls append fresh rows rather than overwrite.
	again, err := store.Record("api", pact.ContentSHA, "2.0.0", false, "")
	require.NoError(t, err)
	assert.NotEqual(t, verification.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&VerificationRecord{}).Where("pact_id = ?", pact.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestVerificationStore_LatestFor(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	store := NewVerificationStore(db)

	pact, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "x"), "")
	require.NoError(t, err)

	// Never verified.
	latest, err := store.LatestFor(pact.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first, err := store.Record("api", pact.ContentSHA, "2.0.0", false, "")
	require.NoError(t, err)
	second, err := store.Record("api", pact.ContentSHA, "2.1.0", true, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err = store.LatestFor(pact.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.True(t, latest.Success)

	// Equal timestamps fall back to insertion order.
	now := time.Now()
	require.NoError(t, db.Model(&VerificationRecord{}).Where("pact_id = ?", pact.ID).Update("verified_at", now).Error)

	latest, err = store.LatestFor(pact.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
}

func TestVerificationStore_LatestForTowardTag(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	participants := NewParticipantStore(db)
	store := NewVerificationStore(db)

	pact, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "x"), "")
	require.NoError(t, err)

	_, err = store.Record("api", pact.ContentSHA, "2.0.0", true, "")
	require.NoError(t, err)
	tagged, err := store.Record("api", pact.ContentSHA, "2.1.0", false, "")
	require.NoError(t, err)

	// No provider version carries the tag yet.
	latest, err := store.LatestForTowardTag(pact.ID, "api", "prod")
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = participants.TagVersion("api", "2.1.0", "prod")
	require.NoError(t, err)

	// Scoped to the tagged provider version only.
	latest, err = store.LatestForTowardTag(pact.ID, "api", "prod")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, tagged.ID, latest.ID)
	assert.False(t, latest.Success)

	// Tagged version that never verified this pact.
	other, _, err := pacts.Publish("mobile", "3.0.0", "api", pactDoc("mobile", "api", "m"), "")
	require.NoError(t, err)
	latest, err = store.LatestForTowardTag(other.ID, "api", "prod")
	require.NoError(t, err)
	assert.Nil(t, latest)
}
