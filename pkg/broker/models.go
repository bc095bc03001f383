package broker

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PactContent is the opaque pact document stored as canonical JSON.
// The canonical form is the output of encoding/json over the decoded
// document, so key order is stable and content hashes are reproducible.
type PactContent map[string]any

// Scan implements the sql.Scanner interface for PactContent.
func (c *PactContent) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for PactContent: %T", value)
	}
	return json.Unmarshal(bytes, c)
}

// Value implements the driver.Valuer interface for PactContent.
func (c PactContent) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ParticipantRecord is a named consumer or provider service.
// Participants are created implicitly on first reference.
type ParticipantRecord struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Name           string    `gorm:"column:name;uniqueIndex:idx_participant_name;not null"`
	MainBranchName string    `gorm:"column:main_branch_name;default:main;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (ParticipantRecord) TableName() string { return "participants" }

// VersionRecord is one version of a participant. The number is an opaque
// string; branch and build URL are creation-only fields.
type VersionRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement;column:id"`
	ParticipantID int64     `gorm:"column:participant_id;uniqueIndex:idx_version_key,priority:1;not null"`
	Number        string    `gorm:"column:number;uniqueIndex:idx_version_key,priority:2;not null"`
	Branch        string    `gorm:"column:branch;index"`
	BuildURL      string    `gorm:"column:build_url"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName returns the GORM table name.
func (VersionRecord) TableName() string { return "versions" }

// TagRecord is a named tag on one version. A tag name may appear on
// multiple versions of the same participant.
type TagRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	VersionID int64     `gorm:"column:version_id;uniqueIndex:idx_tag_key,priority:1;not null"`
	Name      string    `gorm:"column:name;uniqueIndex:idx_tag_key,priority:2;index:idx_tag_name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (TagRecord) TableName() string { return "tags" }

// PactRecord is the contract document published by one consumer version
// against one provider. At most one live pact per (consumer version,
// provider) pair; ContentSHA is the SHA-256 hex digest of the canonical
// serialization of Content.
type PactRecord struct {
	ID                int64       `gorm:"primaryKey;autoIncrement;column:id"`
	ConsumerVersionID int64       `gorm:"column:consumer_version_id;uniqueIndex:idx_pact_key,priority:1;not null"`
	ProviderID        int64       `gorm:"column:provider_id;uniqueIndex:idx_pact_key,priority:2;index;not null"`
	Content           PactContent `gorm:"column:content;type:text;not null"`
	ContentSHA        string      `gorm:"column:content_sha;type:varchar(64);index:idx_pact_sha;not null"`
	CreatedAt         time.Time   `gorm:"column:created_at;index"`
	UpdatedAt         time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (PactRecord) TableName() string { return "pacts" }

// VerificationRecord is one provider version's verification attempt
// against one pact. Rows are append-only; history is retained.
type VerificationRecord struct {
	ID                int64     `gorm:"primaryKey;autoIncrement;column:id"`
	PactID            int64     `gorm:"column:pact_id;index:idx_verification_pact;not null"`
	ProviderVersionID int64     `gorm:"column:provider_version_id;index;not null"`
	Success           bool      `gorm:"column:success;not null"`
	BuildURL          string    `gorm:"column:build_url"`
	VerifiedAt        time.Time `gorm:"column:verified_at;index;not null"`
}

// TableName returns the GORM table name.
func (VerificationRecord) TableName() string { return "verifications" }

// EnvironmentRecord is a named deployment target.
type EnvironmentRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Name        string    `gorm:"column:name;uniqueIndex:idx_environment_name;not null"`
	DisplayName string    `gorm:"column:display_name"`
	Production  bool      `gorm:"column:production;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the GORM table name.
func (EnvironmentRecord) TableName() string { return "environments" }

// DeploymentRecord ties a version to an environment. Undeploying stamps
// UndeployedAt rather than deleting the row, so history is retained; at
// most one row per (version, environment) has a null UndeployedAt.
type DeploymentRecord struct {
	ID            int64      `gorm:"primaryKey;autoIncrement;column:id"`
	VersionID     int64      `gorm:"column:version_id;index:idx_deployment_key,priority:1;not null"`
	EnvironmentID int64      `gorm:"column:environment_id;index:idx_deployment_key,priority:2;not null"`
	DeployedAt    time.Time  `gorm:"column:deployed_at;not null"`
	UndeployedAt  *time.Time `gorm:"column:undeployed_at"`
}

// TableName returns the GORM table name.
func (DeploymentRecord) TableName() string { return "deployments" }
