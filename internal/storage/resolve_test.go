package storage

import (
	"errors"
	"testing"
	"time"
)

func TestResolveError(t *testing.T) {
	s := openTestStore(t)
	e := mustSaveError(t, s, testError("7777777777777777"))
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	sol, itemID, err := s.ResolveError(e.ID, Solution{Resolution: "install the missing package", ContributorID: "c1"}, at, true)
	if err != nil {
		t.Fatalf("ResolveError: %v", err)
	}
	if sol.ID == "" || sol.ErrorID != e.ID {
		t.Errorf("solution = %+v", sol)
	}

	got, _ := s.GetError(e.ID)
	if got.Status != StatusResolved || got.ResolvedAt == nil || !got.ResolvedAt.Equal(at) {
		t.Errorf("record = status %q resolved_at %v", got.Status, got.ResolvedAt)
	}
	if list, _ := s.SolutionsForError(e.ID); len(list) != 1 {
		t.Errorf("solutions = %d, want 1", len(list))
	}
	items, _ := s.PendingItems(10)
	if len(items) != 1 || items[0].ID != itemID || items[0].Kind != KindSolution {
		t.Fatalf("queue = %+v, want the solution item %s", items, itemID)
	}
	if st, _ := s.Stats(); st.ResolvedErrors != 1 {
		t.Errorf("resolved_errors = %d, want 1", st.ResolvedErrors)
	}

	if _, _, err := s.ResolveError(e.ID, Solution{Resolution: "another fix"}, at, false); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second ResolveError = %v, want ErrAlreadyResolved", err)
	}
	if _, _, err := s.ResolveError("missing", Solution{Resolution: "x"}, at, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveError(missing) = %v, want ErrNotFound", err)
	}
}

func TestResolveErrorWithoutQueue(t *testing.T) {
	s := openTestStore(t)
	e := mustSaveError(t, s, testError("8888888888888888"))

	_, itemID, err := s.ResolveError(e.ID, Solution{Resolution: "pin the version"}, time.Time{}, false)
	if err != nil {
		t.Fatalf("ResolveError: %v", err)
	}
	if itemID != "" {
		t.Errorf("itemID = %q, want none", itemID)
	}
	if n, _ := s.PendingCount(); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestResolveErrorRollsBack(t *testing.T) {
	s := openTestStore(t)
	e := mustSaveError(t, s, testError("9999999999999999"))
	other := mustSaveError(t, s, testError("aaaaaaaaaaaaaaaa"))
	taken, err := s.SaveSolution(Solution{ErrorID: other.ID, Resolution: "unrelated fix"})
	if err != nil {
		t.Fatalf("SaveSolution: %v", err)
	}

	// Reusing an existing solution id makes the insert fail after the
	// status update has run.
	if _, _, err := s.ResolveError(e.ID, Solution{ID: taken.ID, Resolution: "clashing fix"}, time.Time{}, true); err == nil {
		t.Fatal("expected insert failure")
	}

	got, _ := s.GetError(e.ID)
	if got.Status != StatusUnresolved || got.ResolvedAt != nil {
		t.Errorf("record = status %q resolved_at %v, want untouched", got.Status, got.ResolvedAt)
	}
	if st, _ := s.Stats(); st.ResolvedErrors != 0 {
		t.Errorf("resolved_errors = %d, want 0", st.ResolvedErrors)
	}
	if n, _ := s.PendingCount(); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}

	if _, _, err := s.ResolveError(e.ID, Solution{Resolution: "the real fix"}, time.Time{}, false); err != nil {
		t.Errorf("retry after rollback: %v", err)
	}
}
