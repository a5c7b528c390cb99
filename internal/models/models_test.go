package models

import "testing"

func intPtr(v int) *int { return &v }

func TestMissingFields_PriorityOrder(t *testing.T) {
	c := Candidate{Email: "a@b.com"}
	missing := c.MissingFields()
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing fields, got %d", len(missing))
	}
	if missing[0] != FieldName {
		t.Errorf("expected first missing field %q, got %q", FieldName, missing[0])
	}
	if missing[1] != FieldPhone {
		t.Errorf("expected second missing field %q, got %q", FieldPhone, missing[1])
	}

	c.Name = "Ada"
	c.Phone = "+1555"
	if got := c.MissingFields(); len(got) != 0 {
		t.Errorf("expected no missing fields, got %v", got)
	}
}

func TestSetContactField(t *testing.T) {
	var c Candidate
	if err := c.SetContactField(FieldName, "Ada"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Ada" {
		t.Errorf("expected name set, got %q", c.Name)
	}
	if err := c.SetContactField("address", "nope"); err != ErrUnknownContactField {
		t.Errorf("expected ErrUnknownContactField, got %v", err)
	}
}

func TestComputeFinalScore_DividesByFlowLength(t *testing.T) {
	c := Candidate{
		Questions: []Question{
			{Score: intPtr(90)},
			{Score: intPtr(0)},
		},
	}
	if got := c.ComputeFinalScore(2); got != 45 {
		t.Errorf("expected 45, got %d", got)
	}
	// Partial interview: two answered out of six, still divided by six.
	if got := c.ComputeFinalScore(6); got != 15 {
		t.Errorf("expected 15, got %d", got)
	}
}

func TestComputeFinalScore_Rounding(t *testing.T) {
	c := Candidate{Questions: []Question{{Score: intPtr(85)}, {Score: intPtr(90)}, {Score: intPtr(80)}}}
	// 255/6 = 42.5, rounds up.
	if got := c.ComputeFinalScore(6); got != 43 {
		t.Errorf("expected 43, got %d", got)
	}
	empty := Candidate{}
	if got := empty.ComputeFinalScore(6); got != 0 {
		t.Errorf("expected 0 for unanswered interview, got %d", got)
	}
}

func TestRemoveMessage(t *testing.T) {
	c := Candidate{ChatHistory: []Message{
		{ID: "m1", Sender: SenderAI, Text: "hello"},
		{ID: "m2", Sender: SenderAI, Text: "Evaluating...", IsInfo: true},
		{ID: "m3", Sender: SenderUser, Text: "an answer"},
	}}
	c.RemoveMessage("m2")
	if len(c.ChatHistory) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(c.ChatHistory))
	}
	if c.ChatHistory[0].ID != "m1" || c.ChatHistory[1].ID != "m3" {
		t.Errorf("unexpected message order after removal: %v", c.ChatHistory)
	}
	// Removing an unknown ID is a no-op.
	c.RemoveMessage("missing")
	if len(c.ChatHistory) != 2 {
		t.Errorf("expected removal of unknown id to be a no-op")
	}
}

func TestCandidateClone_IsDeep(t *testing.T) {
	c := Candidate{
		ID:          "cand_1",
		Questions:   []Question{{ID: "q1", Score: intPtr(50)}},
		ChatHistory: []Message{{ID: "m1", Text: "hi"}},
		FinalScore:  intPtr(50),
	}
	cp := c.Clone()
	*cp.Questions[0].Score = 99
	cp.ChatHistory[0].Text = "changed"
	*cp.FinalScore = 99
	if *c.Questions[0].Score != 50 {
		t.Error("clone shares question score pointer")
	}
	if c.ChatHistory[0].Text != "hi" {
		t.Error("clone shares chat history backing array")
	}
	if *c.FinalScore != 50 {
		t.Error("clone shares final score pointer")
	}
}

func TestAppStateClone(t *testing.T) {
	s := NewAppState()
	s.Candidates["cand_1"] = Candidate{ID: "cand_1", Name: "Ada"}
	s.ActiveCandidateID = "cand_1"
	cp := s.Clone()
	cand := cp.Candidates["cand_1"]
	cand.Name = "changed"
	cp.Candidates["cand_1"] = cand
	if s.Candidates["cand_1"].Name != "Ada" {
		t.Error("clone shares candidate map entries")
	}
	if cp.ActiveCandidateID != "cand_1" || cp.ActiveTab != TabInterviewee {
		t.Errorf("clone lost scalar fields: %+v", cp)
	}
}

func TestValidators(t *testing.T) {
	if !IsValidDifficulty(DifficultyMedium) || IsValidDifficulty("Extreme") {
		t.Error("difficulty validation incorrect")
	}
	if !IsValidCandidateStatus(StatusInProgress) || IsValidCandidateStatus("Archived") {
		t.Error("status validation incorrect")
	}
	if !IsValidTab(TabInterviewer) || IsValidTab("admin") {
		t.Error("tab validation incorrect")
	}
}

func TestDefaultInterviewFlow(t *testing.T) {
	if len(DefaultInterviewFlow) != 6 {
		t.Fatalf("expected 6 stages, got %d", len(DefaultInterviewFlow))
	}
	wantLimits := []int{20, 20, 60, 60, 120, 120}
	for i, stage := range DefaultInterviewFlow {
		if stage.TimeLimitSeconds != wantLimits[i] {
			t.Errorf("stage %d: expected limit %d, got %d", i, wantLimits[i], stage.TimeLimitSeconds)
		}
		if !IsValidDifficulty(stage.Difficulty) {
			t.Errorf("stage %d: invalid difficulty %q", i, stage.Difficulty)
		}
	}
}
