package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"code-exec-service/internal/monitor"
	"code-exec-service/internal/piston"
	"code-exec-service/internal/storage"
)

// fakeRunner implements piston.Runner for pipeline tests.
type fakeRunner struct {
	result *piston.Result
	err    error
	panics bool
}

func (f *fakeRunner) Run(_ context.Context, _, _ string) (*piston.Result, error) {
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func newTestPipeline(runner piston.Runner) (*Pipeline, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return NewPipeline(store, runner, monitor.NewMetrics()), store
}

func TestSubmit_Success(t *testing.T) {
	p, store := newTestPipeline(&fakeRunner{
		result: &piston.Result{
			Stdout:   "hi\n",
			Stderr:   "",
			ExitCode: 0,
			Language: "python",
			Version:  "3.11",
		},
	})

	rec, err := p.Submit(context.Background(), Request{Code: "print('hi')", Language: "python"}, Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Status != storage.StatusSucceeded {
		t.Errorf("Status = %s, want Succeeded", rec.Status)
	}
	if rec.Output != "hi\n" {
		t.Errorf("Output = %q, want %q", rec.Output, "hi\n")
	}
	if rec.ErrorOutput != "" {
		t.Errorf("ErrorOutput = %q, want empty", rec.ErrorOutput)
	}
	if rec.SandboxLanguage != "python" || rec.SandboxVersion != "3.11" {
		t.Errorf("sandbox echo = %s/%s, want python/3.11", rec.SandboxLanguage, rec.SandboxVersion)
	}
	if rec.ExecutionTimeMs < 0 {
		t.Errorf("ExecutionTimeMs = %d, want >= 0", rec.ExecutionTimeMs)
	}

	// The terminal state is what was persisted.
	stored, err := store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != storage.StatusSucceeded {
		t.Errorf("persisted Status = %s, want Succeeded", stored.Status)
	}
}

func TestSubmit_NonZeroExit(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{
		result: &piston.Result{
			Stdout:   "",
			Stderr:   "SyntaxError",
			ExitCode: 1,
			Language: "python",
			Version:  "3.11",
		},
	})

	rec, err := p.Submit(context.Background(), Request{Code: "print(", Language: "python"}, Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Status != storage.StatusFailed {
		t.Errorf("Status = %s, want Failed", rec.Status)
	}
	if rec.ErrorOutput != "SyntaxError" {
		t.Errorf("ErrorOutput = %q, want SyntaxError", rec.ErrorOutput)
	}
	if rec.ExecutionTimeMs != 0 {
		t.Errorf("ExecutionTimeMs = %d, want 0 (set only on success)", rec.ExecutionTimeMs)
	}
}

func TestSubmit_RemoteError(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{
		err: &piston.RemoteError{Detail: "runtime unknown"},
	})

	rec, err := p.Submit(context.Background(), Request{Code: "x", Language: "python"}, Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Status != storage.StatusFailed {
		t.Errorf("Status = %s, want Failed", rec.Status)
	}
	if rec.ErrorOutput != "runtime unknown" {
		t.Errorf("ErrorOutput = %q, want remote detail", rec.ErrorOutput)
	}
}

func TestSubmit_Timeout(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{err: piston.ErrTimeout})

	rec, err := p.Submit(context.Background(), Request{Code: "while True: pass", Language: "python"}, Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Status != storage.StatusTimedOut {
		t.Errorf("Status = %s, want TimedOut", rec.Status)
	}
	if rec.ErrorOutput != "Code execution timed out" {
		t.Errorf("ErrorOutput = %q, want fixed timeout message", rec.ErrorOutput)
	}
	if rec.ExecutionTimeMs != 0 {
		t.Errorf("ExecutionTimeMs = %d, want 0", rec.ExecutionTimeMs)
	}
}

func TestSubmit_UnclassifiedError(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{err: errors.New("connection reset")})

	rec, err := p.Submit(context.Background(), Request{Code: "x", Language: "go"}, Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Status != storage.StatusFailed {
		t.Errorf("Status = %s, want Failed", rec.Status)
	}
	if rec.ErrorOutput != "Internal error while executing code" {
		t.Errorf("ErrorOutput = %q, want generic internal message", rec.ErrorOutput)
	}
}

func TestSubmit_PanicStillTerminal(t *testing.T) {
	p, store := newTestPipeline(&fakeRunner{panics: true})

	rec, err := p.Submit(context.Background(), Request{Code: "x", Language: "python"}, Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if rec.Status != storage.StatusFailed {
		t.Errorf("Status = %s, want Failed after panic", rec.Status)
	}

	stored, err := store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Status.IsTerminal() {
		t.Errorf("persisted Status = %s, record left non-terminal", stored.Status)
	}
}

func TestSubmit_InvalidRequest(t *testing.T) {
	p, store := newTestPipeline(&fakeRunner{})

	tests := []struct {
		name string
		req  Request
	}{
		{"empty code", Request{Code: "", Language: "python"}},
		{"empty language", Request{Code: "print(1)", Language: ""}},
		{"whitespace code", Request{Code: "   \n", Language: "python"}},
		{"both empty", Request{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Submit(context.Background(), tt.req, Anonymous())
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}

	// No record was created for any rejected request.
	if store.Len() != 0 {
		t.Errorf("store has %d records, want 0", store.Len())
	}
}

func TestSubmit_SubmitterRecorded(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{result: &piston.Result{ExitCode: 0}})

	rec, err := p.Submit(context.Background(), Request{Code: "x", Language: "go"}, SubmitterID("alice"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.SubmitterID != "alice" {
		t.Errorf("SubmitterID = %q, want alice", rec.SubmitterID)
	}

	anon, err := p.Submit(context.Background(), Request{Code: "x", Language: "go"}, Anonymous())
	if err != nil {
		t.Fatal(err)
	}
	if anon.SubmitterID != "" {
		t.Errorf("anonymous SubmitterID = %q, want empty", anon.SubmitterID)
	}
}

// updateFailStore drops terminal updates to simulate a lost in-flight write.
type updateFailStore struct {
	*storage.MemoryStore
}

func (s *updateFailStore) Update(context.Context, *storage.ExecutionRecord) error {
	return errors.New("connection lost")
}

func TestSubmit_UpdateFailureReturnsBestKnownState(t *testing.T) {
	store := &updateFailStore{storage.NewMemoryStore()}
	p := NewPipeline(store, &fakeRunner{result: &piston.Result{Stdout: "ok", ExitCode: 0}}, nil)

	rec, err := p.Submit(context.Background(), Request{Code: "x", Language: "python"}, Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Status != storage.StatusSucceeded {
		t.Errorf("returned Status = %s, want Succeeded despite lost update", rec.Status)
	}

	// The durable Pending row is still queryable.
	stored, err := store.MemoryStore.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != storage.StatusPending {
		t.Errorf("persisted Status = %s, want Pending", stored.Status)
	}
}

func TestGet(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{result: &piston.Result{ExitCode: 0}})

	rec, err := p.Submit(context.Background(), Request{Code: "x", Language: "go"}, Anonymous())
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
}

func TestGet_NotFound(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{})

	_, err := p.Get(context.Background(), "unknown-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHistory(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{
		result: &piston.Result{Stderr: "err", ExitCode: 1},
	})

	alice := SubmitterID("alice")
	for i := 0; i < 2; i++ {
		if _, err := p.Submit(context.Background(), Request{Code: "x", Language: "go"}, alice); err != nil {
			t.Fatal(err)
		}
	}

	history, err := p.History(context.Background(), alice)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("len = %d, want 2", len(history))
	}
	for _, rec := range history {
		if !rec.Status.IsTerminal() {
			t.Errorf("record %s status = %s, want terminal", rec.ID, rec.Status)
		}
	}
}

func TestHistory_AnonymousIsEmpty(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{result: &piston.Result{ExitCode: 0}})

	if _, err := p.Submit(context.Background(), Request{Code: "x", Language: "go"}, Anonymous()); err != nil {
		t.Fatal(err)
	}

	history, err := p.History(context.Background(), Anonymous())
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("anonymous history has %d records, want 0", len(history))
	}
}

func TestHistory_UnknownSubmitterIsEmptyNotError(t *testing.T) {
	p, _ := newTestPipeline(&fakeRunner{})

	history, err := p.History(context.Background(), SubmitterID("nobody"))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("len = %d, want 0", len(history))
	}
}

func TestSubmit_ReturnsWithinDeadline(t *testing.T) {
	// A runner that honors its context, plus a real client deadline, must
	// resolve to TimedOut without hanging.
	slow := runnerFunc(func(ctx context.Context, _, _ string) (*piston.Result, error) {
		select {
		case <-time.After(10 * time.Second):
			return &piston.Result{ExitCode: 0}, nil
		case <-ctx.Done():
			return nil, piston.ErrTimeout
		}
	})

	p, _ := newTestPipeline(slow)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	rec, err := p.Submit(ctx, Request{Code: "x", Language: "python"}, Anonymous())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Submit took %s, want bounded by deadline", elapsed)
	}
	if rec.Status != storage.StatusTimedOut {
		t.Errorf("Status = %s, want TimedOut", rec.Status)
	}
}

type runnerFunc func(ctx context.Context, code, language string) (*piston.Result, error)

func (f runnerFunc) Run(ctx context.Context, code, language string) (*piston.Result, error) {
	return f(ctx, code, language)
}
