package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/supabase-community/supabase-go"
)

func seeded(t *testing.T, credits int) (*Service, Account) {
	t.Helper()
	svc := NewService(NewMemoryStore())
	acc, created, err := svc.EnsureAdmin(context.Background(), "admin", "13142538", credits)
	if err != nil || !created {
		t.Fatalf("EnsureAdmin = %v, %v", created, err)
	}
	return svc, acc
}

func TestDefaultAdminLogin(t *testing.T) {
	svc, _ := seeded(t, 10)
	ctx := context.Background()

	acc, err := svc.Login(ctx, "admin", "13142538")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if !acc.IsAdmin || acc.Credits != 10 {
		t.Fatalf("unexpected account: %+v", acc)
	}

	for _, tc := range []struct{ user, pass string }{
		{"admin", "wrong"},
		{"nobody", "13142538"},
		{"", ""},
		{"Admin", "13142538"},
	} {
		if _, err := svc.Login(ctx, tc.user, tc.pass); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q, %q) = %v, want ErrInvalidCredentials", tc.user, tc.pass, err)
		}
	}

	if _, again, err := svc.EnsureAdmin(ctx, "admin", "other", 0); err != nil || again {
		t.Fatalf("EnsureAdmin must be idempotent: %v, %v", again, err)
	}
}

func TestPlaintextLegacyPassword(t *testing.T) {
	store := NewMemoryStore()
	_, _ = store.Create(context.Background(), Account{ID: "u1", Username: "legacy", Password: "secret1"})
	svc := NewService(store)
	if _, err := svc.Login(context.Background(), "legacy", "secret1"); err != nil {
		t.Fatalf("plaintext password should match: %v", err)
	}
	if _, err := svc.Login(context.Background(), "legacy", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, acc := seeded(t, 0)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, acc.ID, "13142538", "123"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := svc.ChangePassword(ctx, acc.ID, "bad", "new-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, acc.ID, "13142538", "new-password"); err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	if _, err := svc.Login(ctx, "admin", "new-password"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	stored, _ := svc.Store.GetByID(ctx, acc.ID)
	if !strings.HasPrefix(stored.Password, "$2") {
		t.Fatal("new password should be stored as a bcrypt hash")
	}
}

func TestConcurrentDeductNeverGoesNegative(t *testing.T) {
	const workers = 20
	svc, acc := seeded(t, workers-1)

	var ok, insufficient atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Store.DeductCredit(context.Background(), acc.ID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientCredits):
				insufficient.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if ok.Load() != workers-1 || insufficient.Load() != 1 {
		t.Fatalf("succeeded=%d insufficient=%d", ok.Load(), insufficient.Load())
	}
	final, _ := svc.Store.GetByID(context.Background(), acc.ID)
	if final.Credits != 0 {
		t.Fatalf("final credits = %d", final.Credits)
	}

	if n, err := svc.Store.RefundCredit(context.Background(), acc.ID); err != nil || n != 1 {
		t.Fatalf("RefundCredit = %d, %v", n, err)
	}
	if _, err := svc.Store.DeductCredit(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	if _, err := svc.Register(ctx, "designer", "hunter22", 5, false); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, err := svc.Register(ctx, "designer", "hunter22", 5, false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := svc.Register(ctx, "x", "1", 0, false); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestSupabaseDeductRetriesLostRace(t *testing.T) {
	var patches atomic.Int32
	var credits atomic.Int32
	credits.Store(3)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/rest/v1/app_users") {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]map[string]any{{
				"id": "u1", "username": "admin", "password": "x", "credits": credits.Load(), "is_admin": true, "created_at": time.Now().UTC(),
			}})
		case http.MethodPatch:
			if patches.Add(1) == 1 {
				credits.Store(2)
				_, _ = w.Write([]byte(`[]`))
				return
			}
			credits.Add(-1)
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "u1", "credits": credits.Load()}})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer ts.Close()

	client, err := supabase.NewClient(ts.URL, "service-key", &supabase.ClientOptions{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	store := NewSupabaseStore(client)

	left, err := store.DeductCredit(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DeductCredit error: %v", err)
	}
	if left != 1 || patches.Load() != 2 {
		t.Fatalf("left=%d patches=%d", left, patches.Load())
	}

	credits.Store(0)
	if _, err := store.DeductCredit(context.Background(), "u1"); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
}
