package auth_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tabcap/internal/auth"
	"tabcap/internal/protocol"
)

func TestTokenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	provider := auth.NewProvider(path, nil)

	if provider.Authenticated() {
		t.Fatal("missing token file should not authenticate")
	}
	_, err := provider.Token()
	if !errors.Is(err, protocol.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestTokenLoadsAndTrims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  secret-token \n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	provider := auth.NewProvider(path, nil)
	token, err := provider.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "secret-token" {
		t.Fatalf("token = %q", token)
	}
	if !provider.Authenticated() {
		t.Fatal("Authenticated should report true")
	}
}

func TestEmptyFileMeansNotAuthenticated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	provider := auth.NewProvider(path, nil)
	if provider.Authenticated() {
		t.Fatal("blank token file should not authenticate")
	}
}

func TestWatchPicksUpRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")

	provider := auth.NewProvider(path, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := provider.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("fresh-token"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !provider.Authenticated() {
		if time.Now().After(deadline) {
			t.Fatal("watcher never picked up the new token")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Removing the file drops authentication again.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove token: %v", err)
	}
	deadline = time.Now().Add(3 * time.Second)
	for provider.Authenticated() {
		if time.Now().After(deadline) {
			t.Fatal("watcher never dropped the removed token")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
