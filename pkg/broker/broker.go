// Package broker implements the contract-broker resolution engine:
// participant/version/tag identity, pact storage with content-hash
// deduplication, verification records, deployment tracking, selector
// resolution, and the compatibility-matrix deployability decision.
package broker

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/contractgrid/pact-broker/pkg/dblock"
)

// Broker owns the store handle and serializes all operations on one
// instance: at most one request is in flight at a time, so the
// check-then-insert patterns used by the get-or-create operations never
// race. Multi-step writes additionally run inside database transactions.
type Broker struct {
	db *gorm.DB
	mu sync.Mutex

	participants  *ParticipantStore
	environments  *EnvironmentStore
	deployments   *DeploymentStore
	pacts         *PactStore
	verifications *VerificationStore
	resolver      *SelectorResolver
	matrix        *MatrixService
}

// New creates a Broker over the given database handle.
func New(db *gorm.DB) *Broker {
	return &Broker{
		db:            db,
		participants:  NewParticipantStore(db),
		environments:  NewEnvironmentStore(db),
		deployments:   NewDeploymentStore(db),
		pacts:         NewPactStore(db),
		verifications: NewVerificationStore(db),
		resolver:      NewSelectorResolver(db),
		matrix:        NewMatrixService(db),
	}
}

// Migrate runs the idempotent schema migrations under the migration
// lock. It must complete before the broker serves any request.
func (b *Broker) Migrate(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	locker := dblock.NewMigrationLocker(b.db)
	return locker.WithLock(ctx, func() error {
		if err := b.participants.AutoMigrate(); err != nil {
			return err
		}
		if err := b.environments.AutoMigrate(); err != nil {
			return err
		}
		if err := b.deployments.AutoMigrate(); err != nil {
			return err
		}
		if err := b.pacts.AutoMigrate(); err != nil {
			return err
		}
		return b.verifications.AutoMigrate()
	})
}

// EnsureParticipant returns the named participant, creating it if needed.
func (b *Broker) EnsureParticipant(name string) (*ParticipantRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.participants.EnsureParticipant(name)
}

// EnsureVersion returns the participant version, creating participant
// and version as needed.
func (b *Broker) EnsureVersion(participant, number, branch, buildURL string) (*VersionRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.participants.EnsureVersion(participant, number, branch, buildURL)
}

// ListVersions returns a participant's versions, newest first.
func (b *Broker) ListVersions(participant string) ([]VersionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.participants.ListVersions(participant)
}

// TagVersion places a tag on an existing version.
func (b *Broker) TagVersion(participant, number, tagName string) (*TagRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.participants.TagVersion(participant, number, tagName)
}

// ResolveVersionByTag returns the latest participant version carrying a tag.
func (b *Broker) ResolveVersionByTag(participant, tagName string) (*VersionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.participants.ResolveVersionByTag(participant, tagName)
}

// EnsureEnvironment upserts a named environment.
func (b *Broker) EnsureEnvironment(name string, displayName *string, production *bool) (*EnvironmentRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.environments.EnsureEnvironment(name, displayName, production)
}

// RecordDeployment records a version deployed to an environment.
func (b *Broker) RecordDeployment(participant, number, environment string) (*DeploymentRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deployments.RecordDeployment(participant, number, environment)
}

// RecordUndeployment ends the active deployment of a version in an
// environment, reporting whether anything was undeployed.
func (b *Broker) RecordUndeployment(participant, number, environment string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deployments.RecordUndeployment(participant, number, environment)
}

// IsDeployed reports whether a version is actively deployed, optionally
// restricted to one environment.
func (b *Broker) IsDeployed(participant, number, environment string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deployments.IsDeployed(participant, number, environment)
}

// PublishPact stores a pact document for a consumer version against a provider.
func (b *Broker) PublishPact(consumer, consumerVersion, provider string, content PactContent, branch string) (*PactRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pacts.Publish(consumer, consumerVersion, provider, content, branch)
}

// FetchPactBySha retrieves a pact by content hash.
func (b *Broker) FetchPactBySha(provider, consumer, sha string) (*PactRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pacts.FetchBySha(provider, consumer, sha)
}

// FetchPactExact retrieves the pact of a specific consumer version.
func (b *Broker) FetchPactExact(provider, consumer, consumerVersion string) (*PactRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pacts.FetchExact(provider, consumer, consumerVersion)
}

// FetchPactLatest retrieves the consumer's latest pact with a provider,
// optionally resolved through a tag.
func (b *Broker) FetchPactLatest(provider, consumer, tag string) (*PactRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pacts.FetchLatest(provider, consumer, tag)
}

// RecordVerification appends a verification outcome for the pact with
// the given content hash.
func (b *Broker) RecordVerification(provider, pactSha, providerVersion string, success bool, buildURL string) (*VerificationRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.verifications.Record(provider, pactSha, providerVersion, success, buildURL)
}

// ResolvePactsForVerification computes the pacts a provider must verify
// for the given consumer-version-selectors, with explanatory notices.
func (b *Broker) ResolvePactsForVerification(provider string, selectors []Selector) ([]VerifiablePact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolver.Resolve(provider, selectors)
}

// BuildMatrix assembles the compatibility matrix for a consumer
// participant, optionally restricted to one version and one towardTag.
func (b *Broker) BuildMatrix(participant, version, towardTag string) ([]MatrixRow, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.matrix.BuildMatrix(participant, version, towardTag)
}

// CanIDeploy renders the deployability verdict for a participant version.
func (b *Broker) CanIDeploy(participant, version, towardTag string) (*Decision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.matrix.Decide(participant, version, towardTag)
}
