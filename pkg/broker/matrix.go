package broker

import (
	"fmt"

	"gorm.io/gorm"
)

// MatrixRow is one consumer-version/provider pairing with its relevant
// verification outcome, or nil when the pact has not been verified.
type MatrixRow struct {
	ConsumerName    string
	ConsumerVersion string
	ProviderName    string
	PactSHA         string
	Verification    *VerificationRecord
}

// Decision is a deployability verdict for one participant version.
type Decision struct {
	Deployable bool
	Reason     string
	Matrix     []MatrixRow
}

// MatrixService assembles the consumer/provider compatibility matrix and
// renders can-i-deploy verdicts from it.
type MatrixService struct {
	db *gorm.DB
}

// NewMatrixService creates a new MatrixService.
func NewMatrixService(db *gorm.DB) *MatrixService {
	return &MatrixService{db: db}
}

// BuildMatrix returns a row for every pact where the participant is the
// consumer, optionally restricted to one version number. With a
// towardTag, each row's verification is the newest one performed by the
// provider version carrying that tag; otherwise it is the newest
// verification by any provider version.
func (s *MatrixService) BuildMatrix(participant, version, towardTag string) ([]MatrixRow, error) {
	details, err := NewPactStore(s.db).FetchDetailsForConsumer(participant, version)
	if err != nil {
		return nil, err
	}

	verifications := NewVerificationStore(s.db)
	rows := make([]MatrixRow, 0, len(details))
	for _, detail := range details {
		var verification *VerificationRecord
		if towardTag != "" {
			verification, err = verifications.LatestForTowardTag(detail.Pact.ID, detail.ProviderName, towardTag)
		} else {
			verification, err = verifications.LatestFor(detail.Pact.ID)
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, MatrixRow{
			ConsumerName:    detail.ConsumerName,
			ConsumerVersion: detail.ConsumerVersionNumber,
			ProviderName:    detail.ProviderName,
			PactSHA:         detail.Pact.ContentSHA,
			Verification:    verification,
		})
	}
	return rows, nil
}

// Decide renders the deployability verdict for one participant version.
// A version with no consumer pacts is trivially deployable. Unverified
// pacts take priority over failed verifications in the reported reason.
func (s *MatrixService) Decide(participant, version, towardTag string) (*Decision, error) {
	matrix, err := s.BuildMatrix(participant, version, towardTag)
	if err != nil {
		return nil, err
	}

	if len(matrix) == 0 {
		return &Decision{
			Deployable: true,
			Reason:     "no pacts found for this version",
			Matrix:     matrix,
		}, nil
	}

	var unverified, failed int
	for _, row := range matrix {
		switch {
		case row.Verification == nil:
			unverified++
		case !row.Verification.Success:
			failed++
		}
	}

	switch {
	case unverified > 0:
		return &Decision{
			Deployable: false,
			Reason:     fmt.Sprintf("%d of %d pacts have not been verified by the provider", unverified, len(matrix)),
			Matrix:     matrix,
		}, nil
	case failed > 0:
		return &Decision{
			Deployable: false,
			Reason:     fmt.Sprintf("%d of %d pacts failed verification", failed, len(matrix)),
			Matrix:     matrix,
		}, nil
	default:
		return &Decision{
			Deployable: true,
			Reason:     "all pacts verified successfully",
			Matrix:     matrix,
		}, nil
	}
}
