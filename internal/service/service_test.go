package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kalambet/fixhive/internal/remote"
	"github.com/kalambet/fixhive/internal/remote/mock"
	"github.com/kalambet/fixhive/internal/storage"
)

const typeErrorOutput = "TypeError: Cannot read properties of undefined (reading 'foo') at /Users/alice/app/index.js:42:13"

func newTestService(t *testing.T, g remote.Gateway) (*Service, *storage.Store) {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, g, nil, uuid.NewString()), st
}

func offline(t *testing.T) (*Service, *storage.Store) {
	return newTestService(t, nil)
}

func ingestOne(t *testing.T, s *Service) string {
	t.Helper()
	res, err := s.Ingest("bash", typeErrorOutput)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.ErrorIDs) == 0 {
		t.Fatal("Ingest detected nothing")
	}
	return res.ErrorIDs[0]
}

func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %d, got nil", code)
	}
	if got := Normalize(err).Code; got != code {
		t.Fatalf("code = %d, want %d (err: %v)", got, code, err)
	}
}

func TestIngest_TypeErrorScenario(t *testing.T) {
	s, _ := offline(t)

	res, err := s.Ingest("bash", typeErrorOutput)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Detected != 2 || res.Saved != 2 || len(res.ErrorIDs) != 2 {
		t.Fatalf("result = %+v, want 2 detected and saved", res)
	}
	if !strings.Contains(res.Message, "detected 2 error(s)") {
		t.Errorf("Message = %q", res.Message)
	}

	again, err := s.Ingest("bash", typeErrorOutput)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if again.Saved != 0 {
		t.Errorf("second Saved = %d, want 0", again.Saved)
	}
	if fmt.Sprint(again.ErrorIDs) != fmt.Sprint(res.ErrorIDs) {
		t.Errorf("duplicate ids = %v, want %v", again.ErrorIDs, res.ErrorIDs)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Overview.TotalErrors != 2 {
		t.Errorf("TotalErrors = %d, want 2", stats.Overview.TotalErrors)
	}
	if stats.Breakdown.ByLanguage["javascript"] != 2 {
		t.Errorf("ByLanguage = %v", stats.Breakdown.ByLanguage)
	}
}

func TestIngest_CleanOutput(t *testing.T) {
	s, _ := offline(t)
	res, err := s.Ingest("bash", "build ok\n3 files changed")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Detected != 0 || res.ErrorIDs != nil || res.Message != "" {
		t.Errorf("result = %+v, want empty", res)
	}
}

func TestStats_Empty(t *testing.T) {
	s, _ := offline(t)
	res, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if res.Overview.ResolutionRate != "0%" {
		t.Errorf("ResolutionRate = %q, want 0%%", res.Overview.ResolutionRate)
	}
	if !strings.HasPrefix(res.Message, "No errors detected yet.") {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Configuration.CloudEnabled || res.Configuration.PendingSync != 0 {
		t.Errorf("Configuration = %+v", res.Configuration)
	}
	if res.Configuration.ContributorID != s.ContributorID() {
		t.Errorf("ContributorID = %q", res.Configuration.ContributorID)
	}
}

func TestResolve_OfflineQueuesUpload(t *testing.T) {
	s, st := offline(t)
	id := ingestOne(t, s)

	res, err := s.Resolve(context.Background(), ResolveInput{
		ErrorID:    id,
		Resolution: "check the object is defined before reading foo",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Success || res.Uploaded || res.SolutionID == "" {
		t.Fatalf("result = %+v", res)
	}
	if res.Message != "Error resolved locally. Solution will be uploaded when cloud is available." {
		t.Errorf("Message = %q", res.Message)
	}

	items, err := st.PendingItems(10)
	if err != nil {
		t.Fatalf("PendingItems: %v", err)
	}
	if len(items) != 1 || items[0].Kind != storage.KindSolution {
		t.Fatalf("pending = %+v, want one solution item", items)
	}

	again, err := s.Resolve(context.Background(), ResolveInput{ErrorID: id, Resolution: "another fix entirely"})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if again.Success || again.Message != "This error is already marked as resolved." {
		t.Errorf("second result = %+v", again)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Overview.ResolvedErrors != 1 || stats.Overview.ResolutionRate != "50%" {
		t.Errorf("Overview = %+v", stats.Overview)
	}
	if stats.Configuration.PendingSync != 1 {
		t.Errorf("PendingSync = %d, want 1", stats.Configuration.PendingSync)
	}
}

func TestResolve_NoUpload(t *testing.T) {
	s, st := offline(t)
	id := ingestOne(t, s)
	no := false

	res, err := s.Resolve(context.Background(), ResolveInput{
		ErrorID:    id,
		Resolution: "restart the dev server",
		Upload:     &no,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Message != "Error resolved locally." {
		t.Errorf("Message = %q", res.Message)
	}
	if n, _ := st.PendingCount(); n != 0 {
		t.Errorf("PendingCount = %d, want 0", n)
	}
}

func TestResolve_UploadsWhenCloudIsUp(t *testing.T) {
	g := mock.New()
	s, st := newTestService(t, g)
	id := ingestOne(t, s)

	res, err := s.Resolve(context.Background(), ResolveInput{
		ErrorID:        id,
		Resolution:     "check the object is defined before reading foo",
		ResolutionCode: "if (obj) { obj.foo }",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Uploaded || res.CloudErrorID == "" || res.CloudSolutionID == "" {
		t.Fatalf("result = %+v", res)
	}
	if res.Message != "Error resolved and solution shared with the community!" {
		t.Errorf("Message = %q", res.Message)
	}
	if g.SolutionCount() != 1 {
		t.Errorf("remote solutions = %d, want 1", g.SolutionCount())
	}
	if n, _ := st.PendingCount(); n != 0 {
		t.Errorf("PendingCount = %d, want 0", n)
	}
	rec, err := st.GetError(id)
	if err != nil {
		t.Fatalf("GetError: %v", err)
	}
	if rec.Status != storage.StatusUploaded {
		t.Errorf("Status = %q, want uploaded", rec.Status)
	}
}

func TestResolve_CloudDownThenSync(t *testing.T) {
	g := mock.New()
	g.SetDown(true)
	s, _ := newTestService(t, g)
	id := ingestOne(t, s)

	res, err := s.Resolve(context.Background(), ResolveInput{ErrorID: id, Resolution: "guard the undefined access"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Uploaded {
		t.Fatal("Uploaded = true while cloud is down")
	}

	g.SetDown(false)
	rep, err := s.Sync(context.Background(), 10)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Applied != 1 {
		t.Fatalf("report = %+v, want 1 applied", rep)
	}
	if g.SolutionCount() != 1 {
		t.Errorf("remote solutions = %d, want 1", g.SolutionCount())
	}
	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Overview.UploadedSolutions != 1 {
		t.Errorf("UploadedSolutions = %d, want 1", stats.Overview.UploadedSolutions)
	}
}

func TestResolve_Validation(t *testing.T) {
	s, _ := offline(t)
	ctx := context.Background()

	_, err := s.Resolve(ctx, ResolveInput{ErrorID: "not-a-uuid", Resolution: "long enough text"})
	wantCode(t, err, CodeValidationError)

	_, err = s.Resolve(ctx, ResolveInput{ErrorID: uuid.NewString(), Resolution: "short"})
	wantCode(t, err, CodeValidationError)

	missing := uuid.NewString()
	_, err = s.Resolve(ctx, ResolveInput{ErrorID: missing, Resolution: "long enough text"})
	wantCode(t, err, CodeNotFound)
	if !strings.Contains(err.Error(), missing) {
		t.Errorf("not found message %q does not name the id", err)
	}
}

func TestSync_NotConfigured(t *testing.T) {
	s, _ := offline(t)
	_, err := s.Sync(context.Background(), 10)
	wantCode(t, err, CodeCloudUnavailable)
}

func TestVote_Toggle(t *testing.T) {
	g := mock.New()
	_, solID := g.SeedSolution("TypeError: x is undefined", "define x first", 0, 0)
	s, _ := newTestService(t, g)
	ctx := context.Background()

	up, err := s.Vote(ctx, solID, true)
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if !up.Synced || up.Action != "insert" || up.Message != "Upvoted! Thank you for your feedback." {
		t.Fatalf("first vote = %+v", up)
	}
	if sol, _ := g.Solution(solID); sol.Upvotes != 1 {
		t.Errorf("remote upvotes = %d, want 1", sol.Upvotes)
	}

	again, err := s.Vote(ctx, solID, true)
	if err != nil {
		t.Fatalf("second Vote: %v", err)
	}
	if again.Action != "retract" || again.Message != "Vote removed." {
		t.Errorf("second vote = %+v", again)
	}
	if sol, _ := g.Solution(solID); sol.Upvotes != 0 {
		t.Errorf("remote upvotes after retract = %d, want 0", sol.Upvotes)
	}

	down, err := s.Vote(ctx, solID, false)
	if err != nil {
		t.Fatalf("third Vote: %v", err)
	}
	if down.Message != "Downvoted. Thank you for your feedback." {
		t.Errorf("third vote = %+v", down)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Overview.HelpfulVotes != 1 {
		t.Errorf("HelpfulVotes = %d, want 1", stats.Overview.HelpfulVotes)
	}
}

func TestVote_OfflineQueues(t *testing.T) {
	s, st := offline(t)
	k := uuid.NewString()

	res, err := s.Vote(context.Background(), k, false)
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	if res.Synced || res.Message != "Vote recorded locally. It will be synced when cloud is available." {
		t.Errorf("result = %+v", res)
	}
	items, err := st.PendingItems(10)
	if err != nil {
		t.Fatalf("PendingItems: %v", err)
	}
	if len(items) != 1 || items[0].Kind != storage.KindVote {
		t.Fatalf("pending = %+v, want one vote item", items)
	}
	if v, err := st.LocalVote(k, s.ContributorID()); err != nil || v == nil || *v {
		t.Errorf("LocalVote = %v, %v; want false", v, err)
	}

	_, err = s.Vote(context.Background(), "nope", true)
	wantCode(t, err, CodeValidationError)
}

func TestVote_QueuedBehindEarlierVote(t *testing.T) {
	g := mock.New()
	_, solID := g.SeedSolution("TypeError: x is undefined", "define x first", 0, 0)
	s, st := newTestService(t, g)
	ctx := context.Background()

	g.SetDown(true)
	if _, err := s.Vote(ctx, solID, true); err != nil {
		t.Fatalf("Vote while down: %v", err)
	}
	g.SetDown(false)

	second, err := s.Vote(ctx, solID, false)
	if err != nil {
		t.Fatalf("Vote while up: %v", err)
	}
	if second.Synced || second.Action != "flip" {
		t.Errorf("second vote = %+v, want it queued behind the first", second)
	}
	if n := g.Calls("ApplyVote"); n != 1 {
		t.Errorf("ApplyVote calls = %d, want only the failed first attempt", n)
	}

	rep, err := s.Sync(ctx, 10)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if rep.Applied != 2 {
		t.Fatalf("report = %+v, want 2 applied", rep)
	}

	local, err := st.LocalVote(solID, s.ContributorID())
	if err != nil || local == nil {
		t.Fatalf("LocalVote = %v, %v", local, err)
	}
	helpful, ok := g.Vote(solID, s.ContributorID())
	if !ok || helpful != *local {
		t.Errorf("remote vote = (%v, present %v), local = %v", helpful, ok, *local)
	}
	if sol, _ := g.Solution(solID); sol.Upvotes != 0 || sol.Downvotes != 1 {
		t.Errorf("remote counters = +%d/-%d, want +0/-1", sol.Upvotes, sol.Downvotes)
	}

	third, err := s.Vote(ctx, solID, false)
	if err != nil {
		t.Fatalf("third Vote: %v", err)
	}
	if !third.Synced || third.Action != "retract" {
		t.Errorf("third vote = %+v, want a direct retract once the queue is empty", third)
	}
}

func TestMarkHelpful(t *testing.T) {
	g := mock.New()
	g.SetDown(true)
	s, _ := newTestService(t, g)
	ctx := context.Background()
	k := uuid.NewString()

	res, err := s.MarkHelpful(ctx, k)
	if err != nil {
		t.Fatalf("MarkHelpful: %v", err)
	}
	if res.Synced || res.Message != "Thank you! Your feedback will be synced later." {
		t.Errorf("result = %+v", res)
	}

	g.SetDown(false)
	other := uuid.NewString()
	res, err = s.MarkHelpful(ctx, other)
	if err != nil {
		t.Fatalf("MarkHelpful(other): %v", err)
	}
	if !res.Synced || res.Message != "Thank you! Your feedback helps improve the knowledge base." {
		t.Errorf("other result = %+v", res)
	}

	stats, _ := s.Stats()
	if stats.Overview.HelpfulVotes != 2 {
		t.Errorf("HelpfulVotes = %d, want 2", stats.Overview.HelpfulVotes)
	}
}

func TestMarkHelpful_RepeatKeepsUpvote(t *testing.T) {
	g := mock.New()
	_, solID := g.SeedSolution("TypeError: x is undefined", "define x first", 0, 0)
	s, st := newTestService(t, g)
	ctx := context.Background()

	if _, err := s.MarkHelpful(ctx, solID); err != nil {
		t.Fatalf("MarkHelpful: %v", err)
	}
	again, err := s.MarkHelpful(ctx, solID)
	if err != nil {
		t.Fatalf("second MarkHelpful: %v", err)
	}
	if !again.Success || !again.Synced || again.Message != "You already marked this solution as helpful. Thank you!" {
		t.Errorf("second result = %+v", again)
	}

	if v, _ := st.LocalVote(solID, s.ContributorID()); v == nil || !*v {
		t.Errorf("LocalVote = %v, want a live upvote", v)
	}
	if sol, _ := g.Solution(solID); sol.Upvotes != 1 {
		t.Errorf("remote upvotes = %d, want 1", sol.Upvotes)
	}
	if n := g.Calls("ApplyVote"); n != 1 {
		t.Errorf("ApplyVote calls = %d, want 1", n)
	}
	stats, _ := s.Stats()
	if stats.Overview.HelpfulVotes != 1 {
		t.Errorf("HelpfulVotes = %d, want 1", stats.Overview.HelpfulVotes)
	}
}

func TestReport(t *testing.T) {
	g := mock.New()
	s, _ := newTestService(t, g)
	k := uuid.NewString()

	res, err := s.Report(context.Background(), k, "spam")
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !res.Submitted {
		t.Errorf("result = %+v", res)
	}
	reports := g.Reports()
	if len(reports) != 1 || reports[0].Reason != "spam" || reports[0].ReporterID != s.ContributorID() {
		t.Errorf("reports = %+v", reports)
	}

	off, st := offline(t)
	res, err = off.Report(context.Background(), k, "outdated")
	if err != nil {
		t.Fatalf("offline Report: %v", err)
	}
	if res.Submitted || res.Message != "Report recorded locally. It will be submitted when cloud is available." {
		t.Errorf("offline result = %+v", res)
	}
	if n, _ := st.PendingCount(); n != 1 {
		t.Errorf("PendingCount = %d, want 1", n)
	}
}

func TestSearch_LocalFallback(t *testing.T) {
	s, _ := offline(t)
	id := ingestOne(t, s)
	if _, err := s.Resolve(context.Background(), ResolveInput{ErrorID: id, Resolution: "check foo before use"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	res, err := s.Search(context.Background(), SearchInput{ErrorMessage: "Cannot read properties"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Found || res.ResultCount == 0 {
		t.Fatalf("result = %+v", res)
	}
	var top *SearchHit
	for i := range res.Results {
		if res.Results[i].ErrorID == id {
			top = &res.Results[i]
		}
	}
	if top == nil {
		t.Fatalf("resolved error %s not in results %+v", id, res.Results)
	}
	if top.Similarity != "50%" || top.TopSolution == nil || top.TopSolution.Resolution != "check foo before use" {
		t.Errorf("hit = %+v", top)
	}
	if res.Summary != "" {
		t.Errorf("Summary = %q, want none offline", res.Summary)
	}
}

func TestSearch_Cloud(t *testing.T) {
	g := mock.New()
	g.SeedSolution("TypeError: Cannot read properties of undefined (reading 'map')", "initialise the array", 3, 0)
	s, _ := newTestService(t, g)

	res, err := s.Search(context.Background(), SearchInput{
		ErrorMessage: "TypeError: Cannot read properties of undefined (reading 'map')",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Found || res.ResultCount != 1 {
		t.Fatalf("result = %+v", res)
	}
	hit := res.Results[0]
	if hit.TopSolution == nil || hit.TopSolution.Votes != 3 {
		t.Errorf("hit = %+v", hit)
	}
	if res.Summary != "initialise the array" {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestSearch_CloudDownFallsBackToLocal(t *testing.T) {
	g := mock.New()
	g.SetDown(true)
	s, _ := newTestService(t, g)
	ingestOne(t, s)

	res, err := s.Search(context.Background(), SearchInput{ErrorMessage: "Cannot read properties"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Found {
		t.Fatalf("result = %+v, want local hits", res)
	}
}

func TestSearch_NothingFound(t *testing.T) {
	s, _ := offline(t)
	res, err := s.Search(context.Background(), SearchInput{ErrorMessage: "segfault in libfoo"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Found || len(res.Suggestions) == 0 {
		t.Errorf("result = %+v", res)
	}

	_, err = s.Search(context.Background(), SearchInput{ErrorMessage: "  "})
	wantCode(t, err, CodeValidationError)
	_, err = s.Search(context.Background(), SearchInput{ErrorMessage: "x", Limit: 21})
	wantCode(t, err, CodeValidationError)
}

func TestList(t *testing.T) {
	s, _ := offline(t)

	empty, err := s.List(ListInput{Status: storage.StatusResolved})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if empty.Count != 0 || empty.Message != "No resolved errors found." {
		t.Errorf("empty = %+v", empty)
	}

	id := ingestOne(t, s)
	if _, err := s.Resolve(context.Background(), ResolveInput{ErrorID: id, Resolution: "guard the access"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	all, err := s.List(ListInput{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all.Count != 2 || all.StatusCounts[storage.StatusResolved] != 1 || all.StatusCounts[storage.StatusUnresolved] != 1 {
		t.Errorf("all = %+v", all)
	}

	_, err = s.List(ListInput{Status: "bogus"})
	wantCode(t, err, CodeValidationError)
	_, err = s.List(ListInput{Limit: 51})
	wantCode(t, err, CodeValidationError)
}

func TestErrorDetail(t *testing.T) {
	s, _ := offline(t)
	id := ingestOne(t, s)
	if _, err := s.Resolve(context.Background(), ResolveInput{ErrorID: id, Resolution: "guard the access"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	d, err := s.ErrorDetail(id)
	if err != nil {
		t.Fatalf("ErrorDetail: %v", err)
	}
	if d.Status != storage.StatusResolved || d.ResolvedAt == nil || len(d.Solutions) != 1 {
		t.Errorf("detail = %+v", d)
	}

	_, err = s.ErrorDetail(uuid.NewString())
	wantCode(t, err, CodeNotFound)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"envelope", NewError(CodeAlreadyExists, ""), CodeAlreadyExists},
		{"not found", fmt.Errorf("get: %w", storage.ErrNotFound), CodeNotFound},
		{"invalid item", storage.ErrInvalidItem, CodeValidationError},
		{"rate limited", fmt.Errorf("op: %w: %w", remote.ErrUnavailable, remote.ErrRateLimited), CodeRateLimited},
		{"unavailable", fmt.Errorf("op: %w", remote.ErrUnavailable), CodeCloudUnavailable},
		{"other", errors.New("disk on fire"), CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.err)
			if got.Code != tt.want {
				t.Errorf("Code = %d, want %d", got.Code, tt.want)
			}
			if tt.name == "other" && strings.Contains(got.Message, "fire") {
				t.Errorf("internal detail leaked: %q", got.Message)
			}
		})
	}
	if Normalize(nil) != nil {
		t.Error("Normalize(nil) != nil")
	}
}

func TestNewErrorDefaults(t *testing.T) {
	if got := NewError(CodeStorageError, "").Message; got != "Storage operation failed" {
		t.Errorf("default message = %q", got)
	}
	e := invalid("limit", "bad limit")
	if e.Code != CodeValidationError || e.Data.(map[string]string)["field"] != "limit" {
		t.Errorf("invalid() = %+v", e)
	}
}
