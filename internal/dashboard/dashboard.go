// Package dashboard prepares completed interviews for the reviewer view:
// free-text filtering and ordered listing by name, email or final score.
package dashboard

import (
	"sort"
	"strings"

	"github.com/BTreeMap/Crisp/internal/models"
)

// SortKey selects the candidate list ordering.
type SortKey string

const (
	// SortByScore orders by final score.
	SortByScore SortKey = "score"
	// SortByName orders by candidate name, case-insensitively.
	SortByName SortKey = "name"
	// SortByEmail orders by candidate email, case-insensitively.
	SortByEmail SortKey = "email"
)

// Order is the sort direction.
type Order string

const (
	// OrderAsc sorts ascending.
	OrderAsc Order = "asc"
	// OrderDesc sorts descending.
	OrderDesc Order = "desc"
)

// ParseSortKey maps a query value onto a sort key, defaulting to score.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(s)) {
	case SortByName:
		return SortByName
	case SortByEmail:
		return SortByEmail
	default:
		return SortByScore
	}
}

// ParseOrder maps a query value onto a direction. The default is descending,
// which puts the strongest candidates first under the default score key.
func ParseOrder(s string) Order {
	if Order(strings.ToLower(s)) == OrderAsc {
		return OrderAsc
	}
	return OrderDesc
}

// Filter returns the candidates whose name or email contains the search term,
// case-insensitively. An empty term matches everything.
func Filter(candidates []models.Candidate, search string) []models.Candidate {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return candidates
	}
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(c.Email), term) {
			out = append(out, c)
		}
	}
	return out
}

// Sort returns a new slice ordered by the given key and direction. Candidates
// without a final score sort below every scored candidate.
func Sort(candidates []models.Candidate, key SortKey, order Order) []models.Candidate {
	out := make([]models.Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		var less bool
		switch key {
		case SortByName:
			less = strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		case SortByEmail:
			less = strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
		default:
			less = scoreOf(out[i]) < scoreOf(out[j])
		}
		if order == OrderDesc {
			return !less && !equalBy(out[i], out[j], key)
		}
		return less
	})
	return out
}

// scoreOf treats an unscored candidate as below zero so it always trails.
func scoreOf(c models.Candidate) int {
	if c.FinalScore == nil {
		return -1
	}
	return *c.FinalScore
}

func equalBy(a, b models.Candidate, key SortKey) bool {
	switch key {
	case SortByName:
		return strings.EqualFold(a.Name, b.Name)
	case SortByEmail:
		return strings.EqualFold(a.Email, b.Email)
	default:
		return scoreOf(a) == scoreOf(b)
	}
}
