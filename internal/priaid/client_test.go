package priaid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"stealthcompany.com/symptomcheck/internal/models"
)

func TestSignature(t *testing.T) {
	tests := []struct {
		secret, uri, want string
	}{
		{"key", "The quick brown fox jumps over the lazy dog", "gAcHE0Y+d0m5DC3CSRHidQ=="},
		{"secret", "https://authservice.priaid.ch/login", "b0/t8EGgNKEpfUg4K6FtOA=="},
	}

	for _, tt := range tests {
		if got := Signature(tt.secret, tt.uri); got != tt.want {
			t.Errorf("Signature(%q, %q) = %q, want %q", tt.secret, tt.uri, got, tt.want)
		}
	}
}

func TestNewClientRequiresConfig(t *testing.T) {
	if _, err := NewClient(Config{AuthURI: "x"}, nil); err == nil {
		t.Fatal("expected error for incomplete config")
	}
}

type fakeProvider struct {
	server     *httptest.Server
	authCalls  atomic.Int32
	queryCalls atomic.Int32
	lastQuery  atomic.Value
	authStatus int
}

func newFakeProvider(t *testing.T, results []DiagnosisResult) *fakeProvider {
	t.Helper()
	p := &fakeProvider{authStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		p.authCalls.Add(1)
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		want := "Bearer key:" + Signature("secret", p.server.URL+"/login")
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if p.authStatus != http.StatusOK {
			w.WriteHeader(p.authStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(authResponse{Token: "tok", ValidThrough: 7200})
	})
	mux.HandleFunc("/api/diagnosis", func(w http.ResponseWriter, r *http.Request) {
		p.queryCalls.Add(1)
		p.lastQuery.Store(r.URL.Query())
		if r.URL.Query().Get("token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(results)
	})
	mux.HandleFunc("/api/symptoms", func(w http.ResponseWriter, r *http.Request) {
		p.queryCalls.Add(1)
		p.lastQuery.Store(r.URL.Query())
		_ = json.NewEncoder(w).Encode([]Symptom{{ID: 10, Name: "Abdominal pain"}, {ID: 9, Name: "Cough"}})
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Config{
		AuthURI:   p.server.URL + "/login",
		APIURI:    p.server.URL + "/api",
		APIKey:    "key",
		SecretKey: "secret",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestDiagnose(t *testing.T) {
	results := []DiagnosisResult{
		{
			Issue:          Issue{ID: 11, Name: "Flu", Accuracy: 90, Icd: "J10", IcdName: "Influenza", ProfName: "Influenza", Ranking: 1},
			Specialisation: []Specialisation{{ID: 15, Name: "General practice", SpecialistID: 0}},
		},
		{Issue: Issue{ID: 281, Name: "Food poisoning", Accuracy: 45.5, Ranking: 2}},
	}
	p := newFakeProvider(t, results)

	got, err := p.client(t).Diagnose(context.Background(), []int{9, 10, 10}, models.GenderFemale, 1985)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 || got[0].Issue.ID != 11 || got[1].Issue.ID != 281 {
		t.Fatalf("unexpected results %+v", got)
	}
	if len(got[0].Specialisation) != 1 || got[0].Specialisation[0].ID != 15 {
		t.Errorf("unexpected specialisations %+v", got[0].Specialisation)
	}

	q := p.lastQuery.Load().(url.Values)
	checks := map[string]string{
		"symptoms":      `["9","10","10"]`,
		"gender":        "female",
		"year_of_birth": "1985",
		"language":      "en-gb",
	}
	for k, want := range checks {
		if q[k][0] != want {
			t.Errorf("query %s = %q, want %q", k, q[k][0], want)
		}
	}
	if p.authCalls.Load() != 1 || p.queryCalls.Load() != 1 {
		t.Errorf("expected one auth and one query call, got %d and %d", p.authCalls.Load(), p.queryCalls.Load())
	}
}

func TestDiagnoseAuthFailureSkipsQuery(t *testing.T) {
	p := newFakeProvider(t, nil)
	p.authStatus = http.StatusInternalServerError

	_, err := p.client(t).Diagnose(context.Background(), []int{1}, models.GenderMale, 1990)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if p.queryCalls.Load() != 0 {
		t.Error("query phase must not run after a failed login")
	}
}

func TestDiagnoseMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			_, _ = w.Write([]byte(`{"Token":"tok"}`))
			return
		}
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{AuthURI: srv.URL + "/login", APIURI: srv.URL, APIKey: "k", SecretKey: "s"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Diagnose(context.Background(), []int{1}, models.GenderMale, 1990); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDoAcceptsSuccessRange(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"created", http.StatusCreated, false},
		{"non-authoritative", http.StatusNonAuthoritativeInfo, false},
		{"redirect status", http.StatusMultipleChoices, true},
		{"client error", http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/login" {
					_, _ = w.Write([]byte(`{"Token":"tok"}`))
					return
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`[]`))
			}))
			defer srv.Close()

			c, err := NewClient(Config{AuthURI: srv.URL + "/login", APIURI: srv.URL, APIKey: "k", SecretKey: "s"}, nil)
			if err != nil {
				t.Fatal(err)
			}
			_, err = c.Diagnose(context.Background(), []int{1}, models.GenderMale, 1990)
			if tt.wantErr {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
					t.Errorf("expected StatusError %d, got %v", tt.status, err)
				}
				return
			}
			if err != nil {
				t.Errorf("expected success for status %d, got %v", tt.status, err)
			}
		})
	}
}

func TestSymptoms(t *testing.T) {
	p := newFakeProvider(t, nil)

	got, err := p.client(t).Symptoms(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 10 {
		t.Errorf("unexpected symptoms %+v", got)
	}
	q := p.lastQuery.Load().(url.Values)
	if q["token"][0] != "tok" || q["language"][0] != "en-gb" {
		t.Errorf("unexpected query %v", q)
	}
}
