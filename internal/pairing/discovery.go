package pairing

import (
	"sort"
	"strings"
)

// matterSuffix is the naming convention marking the local Matter twin of a
// cloud entity: climate.living_room pairs with climate.living_room_matter.
const matterSuffix = "_matter"

// Observation is one entity seen on the bus, as reported by the transport.
type Observation struct {
	EntityID     string
	FriendlyName string
	Available    bool
}

// Candidate is a proposed pair derived from the naming convention.
type Candidate struct {
	// Name is a suggested display name, derived from the cloud entity's
	// friendly name or its object id.
	Name string `json:"name"`

	MatterEntity string `json:"matter_entity"`
	GoogleEntity string `json:"google_entity"`

	// MatterAvailable and GoogleAvailable report the entities' availability
	// at discovery time, so operators can spot half-dead candidates before
	// creating the pair.
	MatterAvailable bool `json:"matter_available"`
	GoogleAvailable bool `json:"google_available"`
}

// Discover proposes pairs from observed entities using the *_matter naming
// convention. Entities already referenced by an existing pair are skipped.
// Results are sorted by google entity ID.
func Discover(observed []Observation, existing []Pair) []Candidate {
	paired := make(map[string]bool, len(existing)*2)
	for _, p := range existing {
		paired[p.MatterEntity] = true
		paired[p.GoogleEntity] = true
	}

	byID := make(map[string]Observation, len(observed))
	for _, obs := range observed {
		byID[obs.EntityID] = obs
	}

	candidates := make([]Candidate, 0)
	for _, obs := range observed {
		if !strings.HasSuffix(obs.EntityID, matterSuffix) {
			continue
		}
		googleID := strings.TrimSuffix(obs.EntityID, matterSuffix)
		google, ok := byID[googleID]
		if !ok {
			continue
		}
		if paired[obs.EntityID] || paired[googleID] {
			continue
		}
		if ValidateEntityID(obs.EntityID) != nil || ValidateEntityID(googleID) != nil {
			continue
		}

		candidates = append(candidates, Candidate{
			Name:            candidateName(google),
			MatterEntity:    obs.EntityID,
			GoogleEntity:    googleID,
			MatterAvailable: obs.Available,
			GoogleAvailable: google.Available,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].GoogleEntity < candidates[j].GoogleEntity
	})
	return candidates
}

// candidateName derives a display name for a candidate from the cloud
// entity's friendly name, falling back to a prettified object id.
func candidateName(google Observation) string {
	if google.FriendlyName != "" {
		return google.FriendlyName
	}

	objectID := strings.TrimPrefix(google.EntityID, entityPrefix)
	words := strings.Split(objectID, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
