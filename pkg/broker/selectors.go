package broker

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"
)

// Selector is one consumer-version-selector. Each set field maps to one
// predicate; predicates within a selector compose conjunctively, while
// separate selectors are independent alternatives.
type Selector struct {
	Consumer    string `json:"consumer,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Branch      string `json:"branch,omitempty"`
	MainBranch  bool   `json:"mainBranch,omitempty"`
	Deployed    bool   `json:"deployed,omitempty"`
	Environment string `json:"environment,omitempty"`
	Latest      bool   `json:"latest,omitempty"`
}

// recognized reports whether the selector carries at least one known
// predicate key.
func (sel Selector) recognized() bool {
	return sel.Consumer != "" || sel.Tag != "" || sel.Branch != "" ||
		sel.MainBranch || sel.Deployed || sel.Latest
}

// notice renders the selector as a complete explanatory sentence of the
// form "This pact is being verified because <reason>.".
func (sel Selector) notice() string {
	var clauses []string
	if sel.Consumer != "" {
		clauses = append(clauses, fmt.Sprintf("for consumer '%s'", sel.Consumer))
	}
	if sel.Tag != "" {
		clauses = append(clauses, fmt.Sprintf("tagged '%s'", sel.Tag))
	}
	if sel.Branch != "" {
		clauses = append(clauses, fmt.Sprintf("for branch '%s'", sel.Branch))
	}
	if sel.MainBranch {
		clauses = append(clauses, "for the consumer's main branch")
	}
	if sel.Deployed {
		if sel.Environment != "" {
			clauses = append(clauses, fmt.Sprintf("deployed to environment '%s'", sel.Environment))
		} else {
			clauses = append(clauses, "currently deployed")
		}
	}

	if len(clauses) == 0 {
		if sel.Latest {
			return noticeSentence("it is the latest pact")
		}
		return noticeSentence("it matches the consumer version selectors")
	}
	return noticeSentence("it is the latest pact " + strings.Join(clauses, " and "))
}

func noticeSentence(reason string) string {
	return "This pact is being verified because " + reason + "."
}

// VerifiablePact is a pact selected for verification together with the
// notices explaining why it was selected.
type VerifiablePact struct {
	Detail  PactDetail
	Notices []string
}

// SelectorResolver computes, for a provider and a set of
// consumer-version-selectors, the pacts that must be verified.
type SelectorResolver struct {
	db *gorm.DB
}

// NewSelectorResolver creates a new SelectorResolver.
func NewSelectorResolver(db *gorm.DB) *SelectorResolver {
	return &SelectorResolver{db: db}
}

// Resolve evaluates each selector independently against the full
// latest-pact-per-consumer candidate set and unions the matches by pact
// identity. A pact matched by several selectors accumulates every
// matching selector's notice. With no selectors the full candidate set
// is returned, each pact carrying the fixed latest-pact notice.
func (r *SelectorResolver) Resolve(provider string, selectors []Selector) ([]VerifiablePact, error) {
	candidates, err := NewPactStore(r.db).FetchLatestForAllConsumers(provider)
	if err != nil {
		return nil, err
	}

	if len(selectors) == 0 {
		results := make([]VerifiablePact, 0, len(candidates))
		for _, candidate := range candidates {
			results = append(results, VerifiablePact{
				Detail:  candidate,
				Notices: []string{noticeSentence("it is the latest pact")},
			})
		}
		return results, nil
	}

	matched := mapset.NewSet[int64]()
	notices := map[int64][]string{}
	for _, sel := range selectors {
		subset, err := r.filter(candidates, sel)
		if err != nil {
			return nil, err
		}
		notice := sel.notice()
		for _, candidate := range subset {
			id := candidate.Pact.ID
			matched.Add(id)
			notices[id] = append(notices[id], notice)
		}
	}

	var results []VerifiablePact
	for _, candidate := range candidates {
		if !matched.Contains(candidate.Pact.ID) {
			continue
		}
		results = append(results, VerifiablePact{
			Detail:  candidate,
			Notices: notices[candidate.Pact.ID],
		})
	}
	return results, nil
}

// filter evaluates a single selector against the candidate set. A
// selector with no recognized predicate keys matches every candidate.
func (r *SelectorResolver) filter(candidates []PactDetail, sel Selector) ([]PactDetail, error) {
	if !sel.recognized() {
		return candidates, nil
	}

	participants := NewParticipantStore(r.db)
	deployments := NewDeploymentStore(r.db)

	// Main-branch names per consumer, looked up once per selector pass.
	mainBranches := map[string]string{}

	var subset []PactDetail
	for _, candidate := range candidates {
		if sel.Consumer != "" && candidate.ConsumerName != sel.Consumer {
			continue
		}
		if sel.Branch != "" && candidate.ConsumerBranch != sel.Branch {
			continue
		}
		if sel.MainBranch {
			mainBranch, ok := mainBranches[candidate.ConsumerName]
			if !ok {
				owner, err := participants.GetParticipant(candidate.ConsumerName)
				if err != nil {
					return nil, err
				}
				if owner == nil {
					continue
				}
				mainBranch = owner.MainBranchName
				mainBranches[candidate.ConsumerName] = mainBranch
			}
			if candidate.ConsumerBranch != mainBranch {
				continue
			}
		}
		if sel.Tag != "" {
			hasTag, err := participants.VersionHasTag(candidate.ConsumerVersionID, sel.Tag)
			if err != nil {
				return nil, err
			}
			if !hasTag {
				continue
			}
		}
		if sel.Deployed {
			deployed, err := deployments.versionIsDeployed(candidate.ConsumerVersionID, sel.Environment)
			if err != nil {
				return nil, err
			}
			if !deployed {
				continue
			}
		}
		subset = append(subset, candidate)
	}
	return subset, nil
}
