package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/funnel/pkg/domain"
)

func TestBuilder_SimpleFunnel(t *testing.T) {
	b := New("welcome")

	b.Add("hello").Message("Hello, DSL!")
	b.Add("offer").Buttons("Interested?").
		Choice("Yes", "pay").
		Choice("Later", "")
	b.Add("wait").Delay(3)
	b.Add("pay").Payment("Course", 1000, "")

	def := b.Definition()
	if def.Status != domain.FunnelActive {
		t.Errorf("Expected ACTIVE funnel, got %s", def.Status)
	}
	if len(def.Nodes) != 4 {
		t.Fatalf("Expected 4 nodes, got %d", len(def.Nodes))
	}

	for i, want := range []string{"hello", "offer", "wait", "pay"} {
		if def.Nodes[i].ID != want {
			t.Errorf("node %d: expected %q, got %q", i, want, def.Nodes[i].ID)
		}
		if def.Nodes[i].Position != i {
			t.Errorf("node %d: expected position %d, got %d", i, i, def.Nodes[i].Position)
		}
		if def.Nodes[i].FunnelID != "welcome" {
			t.Errorf("node %d: expected funnel id 'welcome', got %q", i, def.Nodes[i].FunnelID)
		}
	}

	offer := def.Nodes[1]
	if offer.Type != domain.NodeButton || offer.Button == nil {
		t.Fatalf("Expected BUTTON node with content, got %+v", offer)
	}
	if len(offer.Button.Buttons) != 2 {
		t.Fatalf("Expected 2 buttons, got %d", len(offer.Button.Buttons))
	}
	if offer.Button.Buttons[0].Target != "pay" {
		t.Errorf("Expected first button to target 'pay', got %q", offer.Button.Buttons[0].Target)
	}
}

func TestBuilder_BuildLoader(t *testing.T) {
	b := New("f1").Status(domain.FunnelDraft)
	b.Add("a").Message("A")
	b.Add("b").Condition("user.paid")

	loader := b.Build()
	def, err := loader.GetFunnel(context.Background(), "f1")
	if err != nil {
		t.Fatalf("GetFunnel() failed: %v", err)
	}
	if def.IsActive() {
		t.Error("Expected DRAFT funnel to be inactive")
	}
	if def.Nodes[1].Condition == nil || def.Nodes[1].Condition.Expression != "user.paid" {
		t.Errorf("Expected condition expression to be kept, got %+v", def.Nodes[1].Condition)
	}
}

func TestNodeBuilder_TypeSwitchClearsContent(t *testing.T) {
	b := New("f1")
	n := b.Add("x").Message("first").Delay(2)

	node := n.Build()
	if node.Type != domain.NodeDelay {
		t.Errorf("Expected DELAY, got %s", node.Type)
	}
	if node.Message != nil {
		t.Error("Expected message content to be cleared")
	}
	if b.Add("x") != n {
		t.Error("Expected Add to return the existing builder")
	}
}
