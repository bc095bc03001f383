package broker

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PactStore provides content-addressable storage of pact documents,
// keyed by (consumer version, provider) and deduplicated by content hash.
type PactStore struct {
	db *gorm.DB
}

// NewPactStore creates a new PactStore.
func NewPactStore(db *gorm.DB) *PactStore {
	return &PactStore{db: db}
}

// AutoMigrate creates or updates the pacts table.
func (s *PactStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&PactRecord{}); err != nil {
		return fmt.Errorf("auto-migrate pacts: %w", err)
	}
	return nil
}

// Publish stores a pact document for a consumer version against a
// provider. Consumer version and provider participant are created as
// needed. An existing pact with the same content hash is left untouched;
// a different hash overwrites the content in place, preserving the
// original creation time. The boolean reports whether a new pact row was
// created.
func (s *PactStore) Publish(consumer, consumerVersion, provider string, content PactContent, branch string) (*PactRecord, bool, error) {
	if err := ValidatePactContent(content); err != nil {
		return nil, false, err
	}
	sha, err := ContentSHA(content)
	if err != nil {
		return nil, false, err
	}

	var result *PactRecord
	var created bool
	err = s.db.Transaction(func(tx *gorm.DB) error {
		participants := NewParticipantStore(tx)

		version, _, err := participants.EnsureVersion(consumer, consumerVersion, branch, "")
		if err != nil {
			return err
		}
		providerRec, _, err := participants.EnsureParticipant(provider)
		if err != nil {
			return err
		}

		var existing PactRecord
		err = tx.Where("consumer_version_id = ? AND provider_id = ?", version.ID, providerRec.ID).
			First(&existing).Error
		if err == nil {
			if existing.ContentSHA == sha {
				result = &existing
				return nil
			}
			updates := map[string]any{"content": content, "content_sha": sha}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return fmt.Errorf("update pact: %w", err)
			}
			existing.Content = content
			existing.ContentSHA = sha
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("get pact: %w", err)
		}

		record := &PactRecord{
			ConsumerVersionID: version.ID,
			ProviderID:        providerRec.ID,
			Content:           content,
			ContentSHA:        sha,
			CreatedAt:         time.Now(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("create pact: %w", err)
		}
		result = record
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// pactScope narrows pact queries to one provider (by name) and, when
// consumer is non-empty, one consumer participant.
func (s *PactStore) pactScope(provider, consumer string) *gorm.DB {
	query := s.db.
		Joins("JOIN participants AS providers ON providers.id = pacts.provider_id").
		Joins("JOIN versions ON versions.id = pacts.consumer_version_id").
		Joins("JOIN participants AS consumers ON consumers.id = versions.participant_id").
		Where("providers.name = ?", provider)
	if consumer != "" {
		query = query.Where("consumers.name = ?", consumer)
	}
	return query
}

// FetchBySha retrieves a pact by its content hash.
// Returns nil, nil if no pact matches.
func (s *PactStore) FetchBySha(provider, consumer, sha string) (*PactRecord, error) {
	var record PactRecord
	err := s.pactScope(provider, consumer).
		Where("pacts.content_sha = ?", sha).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch pact by sha: %w", err)
	}
	return &record, nil
}

// FetchExact retrieves the pact published by a specific consumer version.
// Returns nil, nil if no pact exists.
func (s *PactStore) FetchExact(provider, consumer, consumerVersion string) (*PactRecord, error) {
	var record PactRecord
	err := s.pactScope(provider, consumer).
		Where("versions.number = ?", consumerVersion).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch pact: %w", err)
	}
	return &record, nil
}

// FetchLatest retrieves the consumer's most recent pact with the
// provider. Without a tag, "most recent" is the consumer version with the
// latest creation time among versions that have a pact with this
// provider. With a tag, the consumer version is resolved through tag
// resolution first. Returns nil, nil if no pact exists.
func (s *PactStore) FetchLatest(provider, consumer, tag string) (*PactRecord, error) {
	if tag != "" {
		version, err := NewParticipantStore(s.db).ResolveVersionByTag(consumer, tag)
		if err != nil {
			return nil, err
		}
		if version == nil {
			return nil, nil
		}
		var record PactRecord
		err = s.pactScope(provider, consumer).
			Where("pacts.consumer_version_id = ?", version.ID).
			First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("fetch pact for tagged version: %w", err)
		}
		return &record, nil
	}

	var record PactRecord
	err := s.pactScope(provider, consumer).
		Order("versions.created_at DESC, versions.id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch latest pact: %w", err)
	}
	return &record, nil
}

// PactDetail pairs a pact row with the consumer coordinates the selector
// resolver and matrix builder need.
type PactDetail struct {
	Pact                  PactRecord
	ProviderName          string
	ConsumerName          string
	ConsumerVersionID     int64
	ConsumerVersionNumber string
	ConsumerBranch        string
}

// pactDetailRow is the flattened scan target for detail queries.
type pactDetailRow struct {
	ID                    int64       `gorm:"column:id"`
	ConsumerVersionID     int64       `gorm:"column:consumer_version_id"`
	ProviderID            int64       `gorm:"column:provider_id"`
	Content               PactContent `gorm:"column:content;type:text"`
	ContentSHA            string      `gorm:"column:content_sha"`
	CreatedAt             time.Time   `gorm:"column:created_at"`
	UpdatedAt             time.Time   `gorm:"column:updated_at"`
	ProviderName          string      `gorm:"column:provider_name"`
	ConsumerName          string      `gorm:"column:consumer_name"`
	ConsumerVersionNumber string      `gorm:"column:consumer_version_number"`
	ConsumerBranch        string      `gorm:"column:consumer_branch"`
	VersionCreatedAt      time.Time   `gorm:"column:version_created_at"`
}

func (r pactDetailRow) detail() PactDetail {
	return PactDetail{
		Pact: PactRecord{
			ID:                r.ID,
			ConsumerVersionID: r.ConsumerVersionID,
			ProviderID:        r.ProviderID,
			Content:           r.Content,
			ContentSHA:        r.ContentSHA,
			CreatedAt:         r.CreatedAt,
			UpdatedAt:         r.UpdatedAt,
		},
		ProviderName:          r.ProviderName,
		ConsumerName:          r.ConsumerName,
		ConsumerVersionID:     r.ConsumerVersionID,
		ConsumerVersionNumber: r.ConsumerVersionNumber,
		ConsumerBranch:        r.ConsumerBranch,
	}
}

const pactDetailColumns = "pacts.*, providers.name AS provider_name, " +
	"consumers.name AS consumer_name, versions.number AS consumer_version_number, " +
	"versions.branch AS consumer_branch, versions.created_at AS version_created_at"

// FetchLatestForAllConsumers resolves, for every consumer that has ever
// published against the provider, that consumer's latest pact. Each
// consumer is resolved independently; there is no cross-consumer
// ordering guarantee beyond consumer name for determinism.
func (s *PactStore) FetchLatestForAllConsumers(provider string) ([]PactDetail, error) {
	var rows []pactDetailRow
	err := s.pactScope(provider, "").
		Model(&PactRecord{}).
		Select(pactDetailColumns).
		Order("consumers.name ASC, versions.created_at DESC, versions.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch pacts for provider: %w", err)
	}

	// Rows arrive newest-version-first per consumer; keep the first row
	// seen for each consumer.
	var details []PactDetail
	seen := map[string]bool{}
	for _, row := range rows {
		if seen[row.ConsumerName] {
			continue
		}
		seen[row.ConsumerName] = true
		details = append(details, row.detail())
	}
	return details, nil
}

// FetchDetailsForConsumer returns detail rows for every pact where the
// given participant is the consumer, optionally restricted to one
// version number. Used by the matrix builder.
func (s *PactStore) FetchDetailsForConsumer(consumer, versionNumber string) ([]PactDetail, error) {
	query := s.db.
		Joins("JOIN participants AS providers ON providers.id = pacts.provider_id").
		Joins("JOIN versions ON versions.id = pacts.consumer_version_id").
		Joins("JOIN participants AS consumers ON consumers.id = versions.participant_id").
		Where("consumers.name = ?", consumer)
	if versionNumber != "" {
		query = query.Where("versions.number = ?", versionNumber)
	}

	var rows []pactDetailRow
	err := query.
		Model(&PactRecord{}).
		Select(pactDetailColumns).
		Order("providers.name ASC, versions.created_at DESC, versions.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch pacts for consumer: %w", err)
	}

	details := make([]PactDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.detail())
	}
	return details, nil
}
