package tokengate

import (
	"errors"
	"sync"
	"testing"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := withUA("browser-A")

	login, err := f.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	type outcome struct {
		res *LoginResult
		err error
	}
	results := make(chan outcome, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			res, err := f.engine.Refresh(ctx, login.RefreshHandle)
			results <- outcome{res, err}
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	var winner string
	for r := range results {
		if r.err == nil {
			success++
			winner = r.res.RefreshHandle
			continue
		}
		if errors.Is(r.err, ErrRefreshInvalid) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", r.err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}

	handles, err := f.engine.SessionStore().ActiveHandles(ctx, "u-alice")
	if err != nil {
		t.Fatalf("active handles: %v", err)
	}
	if len(handles) != 1 || handles[0] != winner {
		t.Fatalf("expected only the winner's session to survive, got %v", handles)
	}
}

// Two clients holding different handles of one user rotate at the same
// time. Nothing coalesces them: both rotations succeed independently and
// each client ends up with its own fresh handle.
func TestConcurrentRotationsOfDistinctHandlesAreIndependent(t *testing.T) {
	f := newTestEngine(t, nil)
	ctx := withUA("browser-A")

	a, err := f.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	b, err := f.engine.Login(ctx, "alice", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, h := range []string{a.RefreshHandle, b.RefreshHandle} {
		wg.Add(1)
		go func(i int, h string) {
			defer wg.Done()
			_, errs[i] = f.engine.Refresh(ctx, h)
		}(i, h)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("rotation %d: %v", i, err)
		}
	}
	handles, err := f.engine.SessionStore().ActiveHandles(ctx, "u-alice")
	if err != nil {
		t.Fatalf("active handles: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("expected two live sessions, got %d", len(handles))
	}
}
