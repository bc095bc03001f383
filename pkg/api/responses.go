package api

import (
	"fmt"
	"time"

	"github.com/contractgrid/pact-broker/pkg/broker"
)

// MatrixParticipant is one side of a matrix row. Provider versions are
// not part of the matrix contract, so the provider's version is always null.
type MatrixParticipant struct {
	Name    string  `json:"name"`
	Version *string `json:"version"`
}

// MatrixPactVersion identifies the pact body by content hash.
type MatrixPactVersion struct {
	Sha string `json:"sha"`
}

// MatrixVerificationResult is the latest relevant verification outcome.
type MatrixVerificationResult struct {
	Success    bool   `json:"success"`
	VerifiedAt string `json:"verifiedAt"`
}

// MatrixRow is one consumer/provider pairing in the wire matrix.
type MatrixRow struct {
	Consumer           MatrixParticipant         `json:"consumer"`
	Provider           MatrixParticipant         `json:"provider"`
	PactVersion        MatrixPactVersion         `json:"pactVersion"`
	VerificationResult *MatrixVerificationResult `json:"verificationResult"`
}

// MatrixSummary is the deployability verdict.
type MatrixSummary struct {
	Deployable bool   `json:"deployable"`
	Reason     string `json:"reason"`
}

// MatrixResponse is the matrix / can-i-deploy wire shape.
type MatrixResponse struct {
	Summary MatrixSummary `json:"summary"`
	Matrix  []MatrixRow   `json:"matrix"`
}

func matrixResponse(decision *broker.Decision) MatrixResponse {
	rows := make([]MatrixRow, 0, len(decision.Matrix))
	for _, row := range decision.Matrix {
		version := row.ConsumerVersion
		wire := MatrixRow{
			Consumer:    MatrixParticipant{Name: row.ConsumerName, Version: &version},
			Provider:    MatrixParticipant{Name: row.ProviderName, Version: nil},
			PactVersion: MatrixPactVersion{Sha: row.PactSHA},
		}
		if row.Verification != nil {
			wire.VerificationResult = &MatrixVerificationResult{
				Success:    row.Verification.Success,
				VerifiedAt: row.Verification.VerifiedAt.UTC().Format(time.RFC3339),
			}
		}
		rows = append(rows, wire)
	}
	return MatrixResponse{
		Summary: MatrixSummary{Deployable: decision.Deployable, Reason: decision.Reason},
		Matrix:  rows,
	}
}

// VerificationNotice explains why a pact was selected for verification.
type VerificationNotice struct {
	Text string `json:"text"`
	When string `json:"when"`
}

// VerificationProperties carries the notices and pending flag for one
// verifiable pact.
type VerificationProperties struct {
	Notices []VerificationNotice `json:"notices"`
	Pending bool                 `json:"pending"`
}

// Link is a hypermedia link to a related resource.
type Link struct {
	Href string `json:"href"`
	Name string `json:"name,omitempty"`
}

// VerifiablePactEntry is one pact in the pacts-for-verification response.
type VerifiablePactEntry struct {
	VerificationProperties VerificationProperties `json:"verificationProperties"`
	Links                  map[string]Link        `json:"_links"`
}

// ForVerificationResponse is the pacts-for-verification wire shape.
type ForVerificationResponse struct {
	Embedded struct {
		Pacts []VerifiablePactEntry `json:"pacts"`
	} `json:"_embedded"`
}

func forVerificationResponse(pacts []broker.VerifiablePact) ForVerificationResponse {
	var resp ForVerificationResponse
	resp.Embedded.Pacts = make([]VerifiablePactEntry, 0, len(pacts))
	for _, pact := range pacts {
		notices := make([]VerificationNotice, 0, len(pact.Notices))
		for _, text := range pact.Notices {
			notices = append(notices, VerificationNotice{Text: text, When: "before_verification"})
		}
		detail := pact.Detail
		resp.Embedded.Pacts = append(resp.Embedded.Pacts, VerifiablePactEntry{
			VerificationProperties: VerificationProperties{
				Notices: notices,
				Pending: false,
			},
			Links: map[string]Link{
				"self": {
					Href: fmt.Sprintf("/pacts/provider/%s/consumer/%s/pact-version/%s",
						detail.ProviderName, detail.ConsumerName, detail.Pact.ContentSHA),
					Name: fmt.Sprintf("Pact between %s and %s", detail.ConsumerName, detail.ProviderName),
				},
			},
		})
	}
	return resp
}

// PactResource is the record-lookup response for a published pact.
type PactResource struct {
	Consumer        string `json:"consumer"`
	ConsumerVersion string `json:"consumerVersion"`
	Provider        string `json:"provider"`
	Sha             string `json:"sha"`
	CreatedAt       string `json:"createdAt"`
}

func pactResource(consumer, consumerVersion, provider string, pact *broker.PactRecord) PactResource {
	return PactResource{
		Consumer:        consumer,
		ConsumerVersion: consumerVersion,
		Provider:        provider,
		Sha:             pact.ContentSHA,
		CreatedAt:       pact.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// VersionResource is one participant version in a listing.
type VersionResource struct {
	Number    string `json:"number"`
	Branch    string `json:"branch,omitempty"`
	BuildURL  string `json:"buildUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// EnvironmentResource is an environment record on the wire.
type EnvironmentResource struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Production  bool   `json:"production"`
}
