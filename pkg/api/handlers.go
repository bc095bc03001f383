package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contractgrid/pact-broker/pkg/broker"
)

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// publishPactHandler stores the pact document in the request body for
// the consumer version named in the path. 201 on first publish, 200 on
// republish.
func publishPactHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		consumer := chi.URLParam(r, "consumer")
		version := chi.URLParam(r, "version")
		branch := r.URL.Query().Get("branch")

		var content broker.PactContent
		if err := json.NewDecoder(r.Body).Decode(&content); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid pact document: %v", err))
			return
		}

		pact, created, err := b.PublishPact(consumer, version, provider, content, branch)
		if err != nil {
			handleError(w, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, pactResource(consumer, version, provider, pact))
	}
}

func fetchPactExactHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pact, err := b.FetchPactExact(chi.URLParam(r, "provider"), chi.URLParam(r, "consumer"), chi.URLParam(r, "version"))
		if err != nil {
			handleError(w, err)
			return
		}
		writePactContent(w, pact)
	}
}

func fetchPactLatestHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pact, err := b.FetchPactLatest(chi.URLParam(r, "provider"), chi.URLParam(r, "consumer"), chi.URLParam(r, "tag"))
		if err != nil {
			handleError(w, err)
			return
		}
		writePactContent(w, pact)
	}
}

func fetchPactByShaHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pact, err := b.FetchPactBySha(chi.URLParam(r, "provider"), chi.URLParam(r, "consumer"), chi.URLParam(r, "sha"))
		if err != nil {
			handleError(w, err)
			return
		}
		writePactContent(w, pact)
	}
}

// pactsForVerificationHandler resolves the pacts the provider must
// verify for the consumer-version-selectors in the request body.
func pactsForVerificationHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")

		var req struct {
			ConsumerVersionSelectors []broker.Selector `json:"consumerVersionSelectors"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
				return
			}
		}

		pacts, err := b.ResolvePactsForVerification(provider, req.ConsumerVersionSelectors)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, forVerificationResponse(pacts))
	}
}

// recordVerificationHandler appends a verification result for the pact
// with the content hash in the path.
func recordVerificationHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		sha := chi.URLParam(r, "sha")

		var req struct {
			Success                    bool   `json:"success"`
			ProviderApplicationVersion string `json:"providerApplicationVersion"`
			BuildURL                   string `json:"buildUrl"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.ProviderApplicationVersion == "" {
			writeError(w, http.StatusBadRequest, "providerApplicationVersion is required")
			return
		}

		verification, err := b.RecordVerification(provider, sha, req.ProviderApplicationVersion, req.Success, req.BuildURL)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"success":    verification.Success,
			"verifiedAt": verification.VerifiedAt.UTC().Format(time.RFC3339),
		})
	}
}

func listVersionsHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		versions, err := b.ListVersions(chi.URLParam(r, "participant"))
		if err != nil {
			handleError(w, err)
			return
		}
		resources := make([]VersionResource, 0, len(versions))
		for _, v := range versions {
			resources = append(resources, VersionResource{
				Number:    v.Number,
				Branch:    v.Branch,
				BuildURL:  v.BuildURL,
				CreatedAt: v.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": resources})
	}
}

func tagVersionHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant := chi.URLParam(r, "participant")
		version := chi.URLParam(r, "version")
		tag := chi.URLParam(r, "tag")

		record, err := b.TagVersion(participant, version, tag)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"name":    record.Name,
			"version": version,
		})
	}
}

func ensureEnvironmentHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "environment")

		var req struct {
			DisplayName *string `json:"displayName"`
			Production  *bool   `json:"production"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
				return
			}
		}

		env, created, err := b.EnsureEnvironment(name, req.DisplayName, req.Production)
		if err != nil {
			handleError(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, EnvironmentResource{
			Name:        env.Name,
			DisplayName: env.DisplayName,
			Production:  env.Production,
		})
	}
}

func recordDeploymentHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deployment, err := b.RecordDeployment(
			chi.URLParam(r, "participant"),
			chi.URLParam(r, "version"),
			chi.URLParam(r, "environment"),
		)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"deployedAt": deployment.DeployedAt.UTC().Format(time.RFC3339),
		})
	}
}

func recordUndeploymentHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		undeployed, err := b.RecordUndeployment(
			chi.URLParam(r, "participant"),
			chi.URLParam(r, "version"),
			chi.URLParam(r, "environment"),
		)
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"undeployed": undeployed})
	}
}

func matrixHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant := r.URL.Query().Get("pacticipant")
		if participant == "" {
			writeError(w, http.StatusBadRequest, "pacticipant is required")
			return
		}
		decision, err := b.CanIDeploy(participant, r.URL.Query().Get("version"), r.URL.Query().Get("towardTag"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matrixResponse(decision))
	}
}

func canIDeployHandler(b *broker.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant := r.URL.Query().Get("pacticipant")
		version := r.URL.Query().Get("version")
		if participant == "" || version == "" {
			writeError(w, http.StatusBadRequest, "pacticipant and version are required")
			return
		}
		decision, err := b.CanIDeploy(participant, version, r.URL.Query().Get("towardTag"))
		if err != nil {
			handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matrixResponse(decision))
	}
}

// writePactContent writes the stored pact document itself, or 404 when absent.
func writePactContent(w http.ResponseWriter, pact *broker.PactRecord) {
	if pact == nil {
		writeError(w, http.StatusNotFound, "pact not found")
		return
	}
	writeJSON(w, http.StatusOK, pact.Content)
}

// handleError maps engine errors onto HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, broker.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, broker.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
