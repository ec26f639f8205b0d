// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package recipient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tis-trainee/notifications/internal/remote"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveSingleAccount(t *testing.T) {
	directory := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]directoryAccount{{ID: "a1", Email: "sam@example.com", GivenName: "Sam", FamilyName: "Lee"}})
	})
	profile := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(profileView{Title: "Dr", GMCNumber: "1234567"})
	})

	resolver := NewResolver(
		remote.New("directory", directory.URL, time.Second),
		remote.New("profile", profile.URL, time.Second),
	)

	rec, err := resolver.Resolve(context.Background(), "T1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !rec.IsRegistered || rec.Email != "sam@example.com" || rec.Title != "Dr" {
		t.Errorf("Resolve() = %+v", rec)
	}
}

func TestResolveNoAccountNoProfile(t *testing.T) {
	directory := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	profile := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	resolver := NewResolver(
		remote.New("directory", directory.URL, time.Second),
		remote.New("profile", profile.URL, time.Second),
	)

	_, err := resolver.Resolve(context.Background(), "T1")
	if err != ErrNoAccount {
		t.Errorf("Resolve() error = %v, want ErrNoAccount", err)
	}
}

func TestResolveAmbiguousAccountNoProfile(t *testing.T) {
	directory := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]directoryAccount{{ID: "a1"}, {ID: "a2"}})
	})
	profile := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	resolver := NewResolver(
		remote.New("directory", directory.URL, time.Second),
		remote.New("profile", profile.URL, time.Second),
	)

	_, err := resolver.Resolve(context.Background(), "T1")
	var ambiguous *ErrAmbiguousAccount
	if err == nil {
		t.Fatal("expected an error")
	}
	if e, ok := err.(*ErrAmbiguousAccount); !ok {
		t.Errorf("Resolve() error type = %T, want *ErrAmbiguousAccount", err)
	} else {
		ambiguous = e
		if len(ambiguous.AccountIDs) != 2 {
			t.Errorf("AccountIDs = %v", ambiguous.AccountIDs)
		}
	}
}

func TestResolveAmbiguousAccountWithProfileFallsBackToProfile(t *testing.T) {
	directory := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]directoryAccount{{ID: "a1"}, {ID: "a2"}})
	})
	profile := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(profileView{Email: "p@example.com"})
	})

	resolver := NewResolver(
		remote.New("directory", directory.URL, time.Second),
		remote.New("profile", profile.URL, time.Second),
	)

	rec, err := resolver.Resolve(context.Background(), "T1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if rec.IsRegistered || rec.Email != "p@example.com" {
		t.Errorf("Resolve() = %+v", rec)
	}
}
