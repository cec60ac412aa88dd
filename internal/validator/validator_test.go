package validator

import (
	"strings"
	"testing"

	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/dsl"
)

func TestValidateFunnel(t *testing.T) {
	// Scenario A: valid funnel
	b := dsl.New("ok")
	b.Add("hello").Message("Hi")
	b.Add("offer").Buttons("Buy?").Choice("Yes", "pay")
	b.Add("pay").Payment("Course", 100, "")
	def := b.Definition()

	warnings, err := ValidateFunnel(&def)
	if err != nil {
		t.Errorf("Scenario A (Valid) failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Scenario A: unexpected warnings %v", warnings)
	}

	// Scenario B: broken button target
	broken := dsl.New("broken")
	broken.Add("ask").Buttons("?").Choice("Go", "ghost_node")
	def = broken.Definition()

	_, err = ValidateFunnel(&def)
	if err == nil {
		t.Fatal("Scenario B (Broken) should have failed, but got nil")
	}
	if !strings.Contains(err.Error(), "missing node 'ghost_node'") {
		t.Errorf("Expected missing node error, got: %v", err)
	}
}

func TestValidateFunnel_StructuralErrors(t *testing.T) {
	def := domain.FunnelDefinition{
		ID:     "f",
		Status: "LIVE",
		Nodes: []domain.Node{
			{ID: "a", Type: domain.NodeMessage},
			{ID: "a", Type: "CAROUSEL"},
			{ID: "p", Type: domain.NodePayment},
		},
	}

	_, err := ValidateFunnel(&def)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"Unknown funnel status", "Duplicate node id: 'a'", "Unknown node type 'CAROUSEL'", "no positive price"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}

	empty := domain.FunnelDefinition{ID: "e", Status: domain.FunnelDraft}
	if _, err := ValidateFunnel(&empty); err == nil || !strings.Contains(err.Error(), "no nodes") {
		t.Errorf("expected empty funnel error, got %v", err)
	}
}

func TestValidateFunnel_Unreachable(t *testing.T) {
	// A button that skips ahead still lets free text fall through, so only
	// nodes behind a terminal payment jump are unreachable.
	b := dsl.New("skip")
	b.Add("ask").Buttons("?").Choice("Skip", "end")
	b.Add("middle").Message("reachable by ordinal")
	b.Add("end").Message("bye")
	def := b.Definition()

	warnings, err := ValidateFunnel(&def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	visited := Reachable(&def)
	for _, id := range []string{"ask", "middle", "end"} {
		if !visited[id] {
			t.Errorf("expected %s to be reachable", id)
		}
	}
}

func TestEdges(t *testing.T) {
	b := dsl.New("f")
	b.Add("ask").Buttons("?").Choice("A", "c").Choice("B", "")
	b.Add("b").Message("b")
	b.Add("c").Delay(1)
	def := b.Definition()

	got := Edges(&def, "ask")
	want := []string{"b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Edges(ask) = %v, want %v", got, want)
	}
	if got := Edges(&def, "c"); len(got) != 0 {
		t.Errorf("last node should have no edges, got %v", got)
	}
}
