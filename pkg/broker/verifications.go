package broker

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// VerificationStore records verification outcomes of pacts by provider
// versions. Rows are append-only: every recorded attempt is kept, and
// "latest" selection orders by verification time.
type VerificationStore struct {
	db *gorm.DB
}

// NewVerificationStore creates a new VerificationStore.
func NewVerificationStore(db *gorm.DB) *VerificationStore {
	return &VerificationStore{db: db}
}

// AutoMigrate creates or updates the verifications table.
func (s *VerificationStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&VerificationRecord{}); err != nil {
		return fmt.Errorf("auto-migrate verifications: %w", err)
	}
	return nil
}

// Record appends a verification of the pact with the given content hash
// by a provider version. The provider version is created if needed; the
// pact must exist or ErrNotFound is returned. Identical repeat calls
// still append a fresh historical row.
func (s *VerificationStore) Record(provider, pactSha, providerVersion string, success bool, buildURL string) (*VerificationRecord, error) {
	var result *VerificationRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var pact PactRecord
		err := tx.
			Joins("JOIN participants AS providers ON providers.id = pacts.provider_id").
			Where("providers.name = ? AND pacts.content_sha = ?", provider, pactSha).
			First(&pact).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("pact with sha %s: %w", pactSha, ErrNotFound)
			}
			return fmt.Errorf("get pact by sha: %w", err)
		}

		version, _, err := NewParticipantStore(tx).EnsureVersion(provider, providerVersion, "", "")
		if err != nil {
			return err
		}

		record := &VerificationRecord{
			PactID:            pact.ID,
			ProviderVersionID: version.ID,
			Success:           success,
			BuildURL:          buildURL,
			VerifiedAt:        time.Now(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("create verification: %w", err)
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// LatestFor returns the most recent verification of a pact by any
// provider version. Returns nil, nil if the pact has never been verified.
func (s *VerificationStore) LatestFor(pactID int64) (*VerificationRecord, error) {
	var record VerificationRecord
	err := s.db.Where("pact_id = ?", pactID).
		Order("verified_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest verification: %w", err)
	}
	return &record, nil
}

// LatestForTowardTag returns the most recent verification of a pact by
// the provider version carrying the given tag. Returns nil, nil when no
// provider version carries the tag or that version never verified the
// pact.
func (s *VerificationStore) LatestForTowardTag(pactID int64, provider, tag string) (*VerificationRecord, error) {
	version, err := NewParticipantStore(s.db).ResolveVersionByTag(provider, tag)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, nil
	}

	var record VerificationRecord
	err = s.db.Where("pact_id = ? AND provider_version_id = ?", pactID, version.ID).
		Order("verified_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get verification toward tag: %w", err)
	}
	return &record, nil
}
