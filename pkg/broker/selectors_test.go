package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorNotice(t *testing.T) {
	cases := []struct {
		name     string
		selector Selector
		want     string
	}{
		{
			name:     "latest only",
			selector: Selector{Latest: true},
			want:     "This pact is being verified because it is the latest pact.",
		},
		{
			name:     "consumer",
			selector: Selector{Consumer: "web"},
			want:     "This pact is being verified because it is the latest pact for consumer 'web'.",
		},
		{
			name:     "tag",
			selector: Selector{Tag: "main"},
			want:     "This pact is being verified because it is the latest pact tagged 'main'.",
		},
		{
			name:     "branch",
			selector: Selector{Branch: "feat/x"},
			want:     "This pact is being verified because it is the latest pact for branch 'feat/x'.",
		},
		{
			name:     "main branch",
			selector: Selector{MainBranch: true},
			want:     "This pact is being verified because it is the latest pact for the consumer's main branch.",
		},
		{
			name:     "deployed to environment",
			selector: Selector{Deployed: true, Environment: "prod"},
			want:     "This pact is being verified because it is the latest pact deployed to environment 'prod'.",
		},
		{
			name:     "deployed anywhere",
			selector: Selector{Deployed: true},
			want:     "This pact is being verified because it is the latest pact currently deployed.",
		},
		{
			name:     "combined clauses",
			selector: Selector{Consumer: "web", Tag: "prod"},
			want:     "This pact is being verified because it is the latest pact for consumer 'web' and tagged 'prod'.",
		},
		{
			name:     "unrecognized",
			selector: Selector{},
			want:     "This pact is being verified because it matches the consumer version selectors.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.selector.notice())
		})
	}
}

func TestSelectorResolver_NoSelectors(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	resolver := NewSelectorResolver(db)

	_, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "w"), "")
	require.NoError(t, err)
	_, _, err = pacts.Publish("mobile", "3.0.0", "api", pactDoc("mobile", "api", "m"), "")
	require.NoError(t, err)

	results, err := resolver.Resolve("api", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		require.Len(t, result.Notices, 1)
		assert.Equal(t, "This pact is being verified because it is the latest pact.", result.Notices[0])
	}
}

func TestSelectorResolver_IndependentSelectorsAccumulateNotices(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	participants := NewParticipantStore(db)
	deployments := NewDeploymentStore(db)
	resolver := NewSelectorResolver(db)

	// web's latest pact is tagged main AND deployed to prod; mobile's
	// matches only the tag selector.
	webPact, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "w"), "")
	require.NoError(t, err)
	mobilePact, _, err := pacts.Publish("mobile", "3.0.0", "api", pactDoc("mobile", "api", "m"), "")
	require.NoError(t, err)

	_, err = participants.TagVersion("web", "1.0.0", "main")
	require.NoError(t, err)
	_, err = participants.TagVersion("mobile", "3.0.0", "main")
	require.NoError(t, err)
	_, err = deployments.RecordDeployment("web", "1.0.0", "prod")
	require.NoError(t, err)

	results, err := resolver.Resolve("api", []Selector{
		{Tag: "main"},
		{Deployed: true, Environment: "prod"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[int64]VerifiablePact{}
	for _, result := range results {
		byID[result.Detail.Pact.ID] = result
	}

	require.Contains(t, byID, webPact.ID)
	assert.Equal(t, []string{
		"This pact is being verified because it is the latest pact tagged 'main'.",
		"This pact is being verified because it is the latest pact deployed to environment 'prod'.",
	}, byID[webPact.ID].Notices)

	require.Contains(t, byID, mobilePact.ID)
	assert.Equal(t, []string{
		"This pact is being verified because it is the latest pact tagged 'main'.",
	}, byID[mobilePact.ID].Notices)
}

func TestSelectorResolver_ConsumerAndBranch(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	resolver := NewSelectorResolver(db)

	webPact, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "w"), "feat/x")
	require.NoError(t, err)
	_, _, err = pacts.Publish("mobile", "3.0.0", "api", pactDoc("mobile", "api", "m"), "develop")
	require.NoError(t, err)

	results, err := resolver.Resolve("api", []Selector{{Consumer: "web"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, webPact.ID, results[0].Detail.Pact.ID)

	results, err = resolver.Resolve("api", []Selector{{Branch: "feat/x"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "web", results[0].Detail.ConsumerName)

	// No candidate matches.
	results, err = resolver.Resolve("api", []Selector{{Branch: "release"}})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSelectorResolver_MainBranch(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	resolver := NewSelectorResolver(db)

	// web publishes from its default main branch, mobile from a feature
	// branch.
	_, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "w"), "main")
	require.NoError(t, err)
	_, _, err = pacts.Publish("mobile", "3.0.0", "api", pactDoc("mobile", "api", "m"), "feat/y")
	require.NoError(t, err)

	results, err := resolver.Resolve("api", []Selector{{MainBranch: true}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "web", results[0].Detail.ConsumerName)
	assert.Equal(t, []string{
		"This pact is being verified because it is the latest pact for the consumer's main branch.",
	}, results[0].Notices)
}

func TestSelectorResolver_UnrecognizedSelector(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	resolver := NewSelectorResolver(db)

	_, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "w"), "")
	require.NoError(t, err)

	// A selector carrying only an environment (no deployed flag) has no
	// recognized predicate and matches everything with a generic notice.
	results, err := resolver.Resolve("api", []Selector{{Environment: "prod"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{
		"This pact is being verified because it matches the consumer version selectors.",
	}, results[0].Notices)
}

func TestSelectorResolver_DeployedAnyEnvironment(t *testing.T) {
	db := newTestDB(t)
	pacts := NewPactStore(db)
	deployments := NewDeploymentStore(db)
	resolver := NewSelectorResolver(db)

	_, _, err := pacts.Publish("web", "1.0.0", "api", pactDoc("web", "api", "w"), "")
	require.NoError(t, err)
	_, _, err = pacts.Publish("mobile", "3.0.0", "api", pactDoc("mobile", "api", "m"), "")
	require.NoError(t, err)

	_, err = deployments.RecordDeployment("web", "1.0.0", "staging")
	require.NoError(t, err)

	results, err := resolver.Resolve("api", []Selector{{Deployed: true}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "web", results[0].Detail.ConsumerName)

	// Undeploying removes the match.
	_, err = deployments.RecordUndeployment("web", "1.0.0", "staging")
	require.NoError(t, err)

	results, err = resolver.Resolve("api", []Selector{{Deployed: true}})
	require.NoError(t, err)
	assert.Empty(t, results)
}
