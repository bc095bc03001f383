package broker

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ParticipantStore provides database operations for participants, their
// versions, and tags on versions.
type ParticipantStore struct {
	db *gorm.DB
}

// NewParticipantStore creates a new ParticipantStore.
func NewParticipantStore(db *gorm.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

// AutoMigrate creates or updates the participants, versions, and tags tables.
func (s *ParticipantStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ParticipantRecord{}); err != nil {
		return fmt.Errorf("auto-migrate participants: %w", err)
	}
	if err := s.db.AutoMigrate(&VersionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate versions: %w", err)
	}
	if err := s.db.AutoMigrate(&TagRecord{}); err != nil {
		return fmt.Errorf("auto-migrate tags: %w", err)
	}
	return nil
}

// GetParticipant retrieves a participant by name.
// Returns nil, nil if no participant exists.
func (s *ParticipantStore) GetParticipant(name string) (*ParticipantRecord, error) {
	var record ParticipantRecord
	err := s.db.Where("name = ?", name).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return &record, nil
}

// EnsureParticipant returns the participant with the given name, creating
// it with the default main branch if it does not exist. The boolean
// reports whether a new row was created.
func (s *ParticipantStore) EnsureParticipant(name string) (*ParticipantRecord, bool, error) {
	existing, err := s.GetParticipant(name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	record := &ParticipantRecord{
		Name:           name,
		MainBranchName: "main",
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, false, fmt.Errorf("create participant: %w", err)
	}
	return record, true, nil
}

// GetVersion retrieves a version by participant name and version number.
// Returns nil, nil if no version exists.
func (s *ParticipantStore) GetVersion(participant, number string) (*VersionRecord, error) {
	var record VersionRecord
	err := s.db.
		Joins("JOIN participants ON participants.id = versions.participant_id").
		Where("participants.name = ? AND versions.number = ?", participant, number).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return &record, nil
}

// EnsureVersion returns the version with the given number, creating the
// participant and version as needed. Branch and build URL are
// creation-only: re-ensuring an existing version leaves them unchanged.
func (s *ParticipantStore) EnsureVersion(participant, number, branch, buildURL string) (*VersionRecord, bool, error) {
	owner, _, err := s.EnsureParticipant(participant)
	if err != nil {
		return nil, false, err
	}

	var existing VersionRecord
	err = s.db.Where("participant_id = ? AND number = ?", owner.ID, number).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("get version: %w", err)
	}

	record := &VersionRecord{
		ParticipantID: owner.ID,
		Number:        number,
		Branch:        branch,
		BuildURL:      buildURL,
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, false, fmt.Errorf("create version: %w", err)
	}
	return record, true, nil
}

// ListVersions returns all versions of a participant, newest first.
// An unknown participant yields an empty list.
func (s *ParticipantStore) ListVersions(participant string) ([]VersionRecord, error) {
	var records []VersionRecord
	err := s.db.
		Joins("JOIN participants ON participants.id = versions.participant_id").
		Where("participants.name = ?", participant).
		Order("versions.created_at DESC, versions.id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return records, nil
}

// TagVersion places a tag on an existing version. Returns the existing
// tag row if the version already carries the tag. Fails with ErrNotFound
// if the version does not exist.
func (s *ParticipantStore) TagVersion(participant, number, tagName string) (*TagRecord, error) {
	version, err := s.GetVersion(participant, number)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, fmt.Errorf("version %s/%s: %w", participant, number, ErrNotFound)
	}

	var existing TagRecord
	err = s.db.Where("version_id = ? AND name = ?", version.ID, tagName).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get tag: %w", err)
	}

	record := &TagRecord{
		VersionID: version.ID,
		Name:      tagName,
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return record, nil
}

// ResolveVersionByTag returns the participant's version carrying the tag
// whose creation time is maximal, with the highest row id breaking ties.
// Returns nil, nil if no version carries the tag.
func (s *ParticipantStore) ResolveVersionByTag(participant, tagName string) (*VersionRecord, error) {
	var record VersionRecord
	err := s.db.
		Joins("JOIN participants ON participants.id = versions.participant_id").
		Joins("JOIN tags ON tags.version_id = versions.id").
		Where("participants.name = ? AND tags.name = ?", participant, tagName).
		Order("versions.created_at DESC, versions.id DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve version by tag: %w", err)
	}
	return &record, nil
}

// VersionHasTag reports whether a version carries the given tag.
func (s *ParticipantStore) VersionHasTag(versionID int64, tagName string) (bool, error) {
	var count int64
	err := s.db.Model(&TagRecord{}).
		Where("version_id = ? AND name = ?", versionID, tagName).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check tag: %w", err)
	}
	return count > 0, nil
}
