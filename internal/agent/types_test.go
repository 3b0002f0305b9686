package agent

import "testing"

func TestOutputChecksType(t *testing.T) {
	plan, err := Output[WebSearchPlan](WebSearchPlan{Searches: []WebSearchItem{{Query: "q"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Searches) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	if _, err := Output[WebSearchPlan]("not a plan"); err == nil {
		t.Fatal("expected type error")
	}
	if _, err := Output[WebSearchPlan](nil); err == nil {
		t.Fatal("expected type error for nil")
	}
}

func TestResolvedQueryFallsBack(t *testing.T) {
	res := ClarificationResult{ClarifiedQuery: "refined"}
	if got := res.ResolvedQuery("raw"); got != "refined" {
		t.Fatalf("got %q", got)
	}

	res = ClarificationResult{}
	if got := res.ResolvedQuery("raw"); got != "raw" {
		t.Fatalf("got %q", got)
	}
}

func TestQuestionsPreserveOrder(t *testing.T) {
	res := ClarificationResult{ClarificationQuestions: []ClarificationQuestion{
		{Question: "first"}, {Question: "second"},
	}}
	qs := res.Questions()
	if len(qs) != 2 || qs[0] != "first" || qs[1] != "second" {
		t.Fatalf("unexpected questions: %+v", qs)
	}
}
