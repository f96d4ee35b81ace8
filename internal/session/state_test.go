package session_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/session"
)

func TestState_AppendTurnKeepsLastTen(t *testing.T) {
	st := session.NewState("s1", time.Now())
	base := time.Now()

	for i := 0; i < 25; i++ {
		st.AppendTurn(session.RoleUser, fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Second))
		if len(st.History) > session.MaxHistory {
			t.Fatalf("history grew to %d after %d appends", len(st.History), i+1)
		}
	}

	if len(st.History) != session.MaxHistory {
		t.Fatalf("expected %d turns, got %d", session.MaxHistory, len(st.History))
	}
	if st.History[0].Text != "msg-15" {
		t.Errorf("expected oldest kept turn msg-15, got %s", st.History[0].Text)
	}
	if st.History[9].Text != "msg-24" {
		t.Errorf("expected newest turn msg-24, got %s", st.History[9].Text)
	}
	if !st.LastActivity.Equal(base.Add(24 * time.Second)) {
		t.Error("expected last activity to follow the newest turn")
	}

	recent := st.RecentTurns(4)
	if len(recent) != 4 || recent[3].Text != "msg-24" {
		t.Errorf("unexpected recent turns: %+v", recent)
	}
}

func TestState_SetPageNumbersMatchRecent(t *testing.T) {
	st := session.NewState("s1", time.Now())
	st.SetPage([]catalog.Product{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	if len(st.NumberedProducts) != len(st.RecentProducts) {
		t.Fatalf("numbered %d != recent %d", len(st.NumberedProducts), len(st.RecentProducts))
	}
	for i, p := range st.RecentProducts {
		n, ok := st.Numbered(i + 1)
		if !ok || n.ID != p.ID {
			t.Errorf("position %d: expected %s, got %+v", i+1, p.ID, n)
		}
	}
	if _, ok := st.Numbered(0); ok {
		t.Error("position 0 must not resolve")
	}
	if _, ok := st.Numbered(4); ok {
		t.Error("position past the page must not resolve")
	}

	// A smaller page drops stale numbering.
	st.SetPage([]catalog.Product{{ID: "z"}})
	if _, ok := st.Numbered(2); ok {
		t.Error("expected stale position 2 to be gone")
	}
}

func TestState_SelectAndFocus(t *testing.T) {
	st := session.NewState("s1", time.Now())
	p := &catalog.Product{ID: "p1", Title: "Scarf"}
	st.Select(p)

	if st.SelectedProduct == nil || st.ContextProduct == nil {
		t.Fatal("expected selection to set both selected and context product")
	}
	p.Title = "mutated"
	if st.SelectedProduct.Title != "Scarf" {
		t.Error("selection must copy the product")
	}

	st.Focus(&catalog.Product{ID: "p2"})
	if st.SelectedProduct.ID != "p1" || st.ContextProduct.ID != "p2" {
		t.Error("focus must not replace the selection")
	}
}

func TestState_CloneIsDeep(t *testing.T) {
	st := session.NewState("s1", time.Now())
	st.SetPage([]catalog.Product{{ID: "a", Tags: []string{"x"}}})
	st.PendingOrderEmail = "a@b.c"

	cp := st.Clone()
	cp.RecentProducts[0].Tags[0] = "changed"
	cp.NumberedProducts[1] = catalog.Product{ID: "other"}

	if st.RecentProducts[0].Tags[0] != "x" {
		t.Error("clone shares product slices with the original")
	}
	if st.NumberedProducts[1].ID != "a" {
		t.Error("clone shares the numbering map with the original")
	}
	if cp.PendingOrderEmail != "a@b.c" {
		t.Error("clone lost scalar fields")
	}
}
