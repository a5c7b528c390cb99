package dashboard

import (
	"testing"

	"github.com/BTreeMap/Crisp/internal/models"
)

func scored(name, email string, score int) models.Candidate {
	s := score
	return models.Candidate{Name: name, Email: email, FinalScore: &s}
}

func testCandidates() []models.Candidate {
	return []models.Candidate{
		scored("Charlie Root", "root@example.com", 55),
		scored("alice chan", "alice@example.com", 91),
		scored("Bob Odenkirk", "bob@example.org", 73),
	}
}

func names(cands []models.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

func TestFilterMatchesNameAndEmailCaseInsensitively(t *testing.T) {
	cands := testCandidates()

	byName := Filter(cands, "ALICE")
	if len(byName) != 1 || byName[0].Name != "alice chan" {
		t.Errorf("Filter(ALICE) = %v, want alice chan only", names(byName))
	}
	byEmail := Filter(cands, "example.org")
	if len(byEmail) != 1 || byEmail[0].Name != "Bob Odenkirk" {
		t.Errorf("Filter(example.org) = %v, want Bob Odenkirk only", names(byEmail))
	}
	all := Filter(cands, "  ")
	if len(all) != len(cands) {
		t.Errorf("blank search returned %d of %d candidates", len(all), len(cands))
	}
}

func TestSortByScoreDescendingByDefault(t *testing.T) {
	got := Sort(testCandidates(), ParseSortKey(""), ParseOrder(""))
	want := []string{"alice chan", "Bob Odenkirk", "Charlie Root"}
	for i, n := range want {
		if got[i].Name != n {
			t.Fatalf("order = %v, want %v", names(got), want)
		}
	}
}

func TestSortByNameIgnoresCase(t *testing.T) {
	got := Sort(testCandidates(), SortByName, OrderAsc)
	want := []string{"alice chan", "Bob Odenkirk", "Charlie Root"}
	for i, n := range want {
		if got[i].Name != n {
			t.Fatalf("order = %v, want %v", names(got), want)
		}
	}
}

func TestSortByEmailDescending(t *testing.T) {
	got := Sort(testCandidates(), SortByEmail, OrderDesc)
	if got[0].Email != "root@example.com" || got[2].Email != "alice@example.com" {
		t.Fatalf("order = %v, want root first, alice last", names(got))
	}
}

func TestSortUnscoredCandidatesTrail(t *testing.T) {
	cands := append(testCandidates(), models.Candidate{Name: "Pending Person", Email: "p@example.com"})
	got := Sort(cands, SortByScore, OrderDesc)
	if got[len(got)-1].Name != "Pending Person" {
		t.Errorf("unscored candidate not last: %v", names(got))
	}
	asc := Sort(cands, SortByScore, OrderAsc)
	if asc[0].Name != "Pending Person" {
		t.Errorf("unscored candidate not first ascending: %v", names(asc))
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	cands := testCandidates()
	first := cands[0].Name
	Sort(cands, SortByName, OrderAsc)
	if cands[0].Name != first {
		t.Error("Sort reordered the input slice")
	}
}
