package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) report {
	t.Helper()
	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return body
}

func TestHealthz_AlwaysReturns200(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeReport(t, rec)
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	if body.Uptime == "" {
		t.Error("liveness body missing uptime")
	}
}

func TestHealthz_ContentType(t *testing.T) {
	h := New()
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyz_AllCheckersPass(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: func(_ context.Context) error { return nil }},
		Checker{Name: "telephony", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := decodeReport(t, rec)
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
	for _, name := range []string{"store", "telephony"} {
		entry := body.Checks[name]
		if entry.Status != "ok" {
			t.Errorf("%s check = %q, want %q", name, entry.Status, "ok")
		}
		if entry.Latency == "" {
			t.Errorf("%s check missing latency", name)
		}
		if entry.Error != "" {
			t.Errorf("%s check carries error %q on success", name, entry.Error)
		}
	}
}

func TestReadyz_CheckerFails(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
		Checker{Name: "telephony", Check: func(_ context.Context) error { return nil }},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	body := decodeReport(t, rec)
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if got := body.Checks["store"]; got.Status != "fail" || got.Error != "connection refused" {
		t.Errorf("store check = %+v, want fail with connection refused", got)
	}
	if got := body.Checks["telephony"]; got.Status != "ok" {
		t.Errorf("telephony check = %+v, want ok", got)
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	h := New()

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := decodeReport(t, rec); body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	// Two checkers that each block until the other has started can only both
	// complete if Readyz runs them in parallel.
	a, b := make(chan struct{}), make(chan struct{})
	h := New(
		Checker{Name: "store", Check: func(ctx context.Context) error {
			close(a)
			select {
			case <-b:
				return nil
			case <-time.After(2 * time.Second):
				return errors.New("peer never started")
			}
		}},
		Checker{Name: "telephony", Check: func(ctx context.Context) error {
			close(b)
			select {
			case <-a:
				return nil
			case <-time.After(2 * time.Second):
				return errors.New("peer never started")
			}
		}},
	)

	req := httptest.NewRequest("GET", "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (checks did not overlap)", rec.Code, http.StatusOK)
	}
}

type fakePinger struct{ err error }

func (p *fakePinger) Ping(context.Context) error { return p.err }

func TestStoreChecker(t *testing.T) {
	if err := Store(&fakePinger{}).Check(context.Background()); err != nil {
		t.Errorf("healthy store reported %v", err)
	}
	if err := Store(&fakePinger{err: errors.New("pool closed")}).Check(context.Background()); err == nil {
		t.Error("broken store reported healthy")
	}
	if err := Store(nil).Check(context.Background()); err == nil {
		t.Error("missing store reported healthy")
	}
}

func TestTelephonyChecker(t *testing.T) {
	if err := Telephony(func() bool { return true }).Check(context.Background()); err != nil {
		t.Errorf("configured carrier reported %v", err)
	}
	if err := Telephony(func() bool { return false }).Check(context.Background()); err == nil {
		t.Error("missing carrier reported healthy")
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: func(_ context.Context) error { return nil }},
	)

	mux := http.NewServeMux()
	h.Register(mux)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(
		Checker{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
