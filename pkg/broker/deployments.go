package broker

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EnvironmentStore provides database operations for named environments.
type EnvironmentStore struct {
	db *gorm.DB
}

// NewEnvironmentStore creates a new EnvironmentStore.
func NewEnvironmentStore(db *gorm.DB) *EnvironmentStore {
	return &EnvironmentStore{db: db}
}

// AutoMigrate creates or updates the environments table.
func (s *EnvironmentStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&EnvironmentRecord{}); err != nil {
		return fmt.Errorf("auto-migrate environments: %w", err)
	}
	return nil
}

// GetEnvironment retrieves an environment by name.
// Returns nil, nil if no environment exists.
func (s *EnvironmentStore) GetEnvironment(name string) (*EnvironmentRecord, error) {
	var record EnvironmentRecord
	err := s.db.Where("name = ?", name).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get environment: %w", err)
	}
	return &record, nil
}

// EnsureEnvironment returns the environment with the given name, creating
// it if needed. Supplied fields overwrite the stored values; nil fields
// leave the stored values unchanged. The boolean reports whether a new
// row was created.
func (s *EnvironmentStore) EnsureEnvironment(name string, displayName *string, production *bool) (*EnvironmentRecord, bool, error) {
	existing, err := s.GetEnvironment(name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		updates := map[string]any{}
		if displayName != nil {
			updates["display_name"] = *displayName
			existing.DisplayName = *displayName
		}
		if production != nil {
			updates["production"] = *production
			existing.Production = *production
		}
		if len(updates) > 0 {
			if err := s.db.Model(existing).Updates(updates).Error; err != nil {
				return nil, false, fmt.Errorf("update environment: %w", err)
			}
		}
		return existing, false, nil
	}

	record := &EnvironmentRecord{Name: name}
	if displayName != nil {
		record.DisplayName = *displayName
	}
	if production != nil {
		record.Production = *production
	}
	if err := s.db.Create(record).Error; err != nil {
		return nil, false, fmt.Errorf("create environment: %w", err)
	}
	return record, true, nil
}

// DeploymentStore provides database operations for the deploy/undeploy
// history of versions into environments.
type DeploymentStore struct {
	db *gorm.DB
}

// NewDeploymentStore creates a new DeploymentStore.
func NewDeploymentStore(db *gorm.DB) *DeploymentStore {
	return &DeploymentStore{db: db}
}

// AutoMigrate creates or updates the deployments table.
func (s *DeploymentStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&DeploymentRecord{}); err != nil {
		return fmt.Errorf("auto-migrate deployments: %w", err)
	}
	return nil
}

// activeDeployment returns the active (undeployed_at IS NULL) deployment
// for a version/environment pair, or nil, nil if none exists.
func (s *DeploymentStore) activeDeployment(versionID, environmentID int64) (*DeploymentRecord, error) {
	var record DeploymentRecord
	err := s.db.
		Where("version_id = ? AND environment_id = ? AND undeployed_at IS NULL", versionID, environmentID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active deployment: %w", err)
	}
	return &record, nil
}

// RecordDeployment records that a version was deployed to an environment.
// The environment is auto-created if unknown; the version must exist or
// ErrNotFound is returned. If an active deployment already exists for the
// pair, it is returned unchanged.
func (s *DeploymentStore) RecordDeployment(participant, number, environment string) (*DeploymentRecord, error) {
	var result *DeploymentRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		participants := NewParticipantStore(tx)
		environments := NewEnvironmentStore(tx)
		deployments := NewDeploymentStore(tx)

		version, err := participants.GetVersion(participant, number)
		if err != nil {
			return err
		}
		if version == nil {
			return fmt.Errorf("version %s/%s: %w", participant, number, ErrNotFound)
		}

		env, _, err := environments.EnsureEnvironment(environment, nil, nil)
		if err != nil {
			return err
		}

		active, err := deployments.activeDeployment(version.ID, env.ID)
		if err != nil {
			return err
		}
		if active != nil {
			result = active
			return nil
		}

		record := &DeploymentRecord{
			VersionID:     version.ID,
			EnvironmentID: env.ID,
			DeployedAt:    time.Now(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("create deployment: %w", err)
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordUndeployment stamps the active deployment of a version in an
// environment with the current time. Returns false without mutating
// anything when no active deployment exists.
func (s *DeploymentStore) RecordUndeployment(participant, number, environment string) (bool, error) {
	var undeployed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		participants := NewParticipantStore(tx)
		environments := NewEnvironmentStore(tx)
		deployments := NewDeploymentStore(tx)

		version, err := participants.GetVersion(participant, number)
		if err != nil {
			return err
		}
		if version == nil {
			return nil
		}

		env, err := environments.GetEnvironment(environment)
		if err != nil {
			return err
		}
		if env == nil {
			return nil
		}

		active, err := deployments.activeDeployment(version.ID, env.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return nil
		}

		now := time.Now()
		if err := tx.Model(active).Update("undeployed_at", now).Error; err != nil {
			return fmt.Errorf("update deployment: %w", err)
		}
		undeployed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return undeployed, nil
}

// IsDeployed reports whether a version has an active deployment. With a
// non-empty environment it checks that specific pair; with an empty
// environment it checks for any active deployment of the version.
func (s *DeploymentStore) IsDeployed(participant, number, environment string) (bool, error) {
	version, err := NewParticipantStore(s.db).GetVersion(participant, number)
	if err != nil {
		return false, err
	}
	if version == nil {
		return false, nil
	}
	return s.versionIsDeployed(version.ID, environment)
}

// versionIsDeployed is the version-id form of IsDeployed, used by the
// selector resolver which already holds version ids.
func (s *DeploymentStore) versionIsDeployed(versionID int64, environment string) (bool, error) {
	query := s.db.Model(&DeploymentRecord{}).
		Where("deployments.version_id = ? AND deployments.undeployed_at IS NULL", versionID)
	if environment != "" {
		query = query.
			Joins("JOIN environments ON environments.id = deployments.environment_id").
			Where("environments.name = ?", environment)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check deployment: %w", err)
	}
	return count > 0, nil
}
