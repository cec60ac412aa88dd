package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/funnel/internal/presentation/graph"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/dsl"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		build    func(b *dsl.Builder)
		contains []string
		absent   []string
	}{
		{
			name: "Node Shapes",
			build: func(b *dsl.Builder) {
				b.Add("hello").Message("Hi")
				b.Add("ask").Buttons("?")
				b.Add("wait").Delay(30)
				b.Add("pay").Payment("Course", 990, "")
				b.Add("check").Condition("x > 1")
				b.Add("bye").Message("Bye")
			},
			contains: []string{
				"hello((\"hello\"))",
				"ask[/\"ask\"/]",
				"wait{{\"wait <br/> ⏱️ 30s\"}}",
				"pay[[\"pay <br/> 990 RUB\"]]",
				"check{\"check\"}",
				"bye[\"bye\"]",
				"hello --> ask",
				"check --> bye",
			},
			absent: []string{"bye -->"},
		},
		{
			name: "ID Sanitization",
			build: func(b *dsl.Builder) {
				b.Add("step.one").Message("a")
				b.Add("hyphen-ated").Message("b")
			},
			contains: []string{
				"step_one((\"step.one\"))",
				"hyphen_ated[\"hyphen-ated\"]",
				"step_one --> hyphen_ated",
			},
		},
		{
			name: "Button Edges",
			build: func(b *dsl.Builder) {
				b.Add("ask").Buttons("?").
					Choice("Say \"yes\"", "end").
					Choice("Next", "").
					Choice("Lost", "ghost")
				b.Add("middle").Message("m")
				b.Add("end").Message("e")
			},
			contains: []string{
				"ask -- \"Say 'yes'\" --> end",
				"ask -- \"Next\" --> middle",
				"ask -. \"Lost\" .-> ghost",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := dsl.New("f")
			tt.build(b)
			def := b.Definition()
			got := graph.GenerateMermaid(&def, nil)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, got)
				}
			}
			for _, bad := range tt.absent {
				if strings.Contains(got, bad) {
					t.Errorf("expected output not to contain %q, got:\n%s", bad, got)
				}
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	def := domain.FunnelDefinition{
		ID: "f",
		Nodes: []domain.Node{
			{ID: "a", Type: domain.NodeMessage},
			{ID: "b-1", Type: domain.NodeMessage},
			{ID: "c", Type: domain.NodeMessage},
		},
	}
	overlay := &graph.GraphOverlay{
		VisitedNodes: []string{"a", "b-1", "a"},
		CurrentNode:  "c",
	}

	got := graph.GenerateMermaid(&def, overlay)

	if !strings.Contains(got, "classDef visited") || !strings.Contains(got, "classDef current") {
		t.Fatalf("missing class definitions:\n%s", got)
	}
	if strings.Count(got, "class a visited;") != 1 {
		t.Errorf("visited nodes should be deduplicated:\n%s", got)
	}
	if !strings.Contains(got, "class b_1 visited;") {
		t.Errorf("visited ids should be sanitized:\n%s", got)
	}
	if !strings.Contains(got, "class c current;") {
		t.Errorf("missing current node style:\n%s", got)
	}
}
