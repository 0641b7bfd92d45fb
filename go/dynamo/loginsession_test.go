package dynamo

import (
	"context"
	"testing"
	"time"
)

func TestLoginSessionRoundTrip(t *testing.T) {
	_, cleanup := setup()
	defer cleanup()
	ctx := context.Background()

	created, err := CreateLoginSession(ctx, LoginSession{
		State:        "state-1",
		Nonce:        "nonce-1",
		CodeVerifier: "verifier-1",
		RedirectTo:   "/my-events",
	})
	if err != nil {
		t.Fatalf("CreateLoginSession: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("SessionID not set")
	}
	if created.Expires <= time.Now().Unix() {
		t.Error("Expires not in the future")
	}

	got, err := GetLoginSession(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("GetLoginSession: %v", err)
	}
	if got == nil {
		t.Fatal("session not found")
	}
	if got.State != "state-1" || got.Nonce != "nonce-1" || got.CodeVerifier != "verifier-1" || got.RedirectTo != "/my-events" {
		t.Errorf("got %+v", got)
	}
}

func TestLoginSessionUnknown(t *testing.T) {
	_, cleanup := setup()
	defer cleanup()

	got, err := GetLoginSession(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetLoginSession: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestLoginSessionExpired(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()
	ctx := context.Background()

	created, err := CreateLoginSession(ctx, LoginSession{State: "s", Nonce: "n", CodeVerifier: "v"})
	if err != nil {
		t.Fatalf("CreateLoginSession: %v", err)
	}

	// Rewind the stored expiry; TTL deletion is lazy so the read path must
	// enforce it.
	key := itemKey(loginSessionPK(created.SessionID), MetadataSK)
	item := db.items[key]
	item["expires"] = numberAttr(time.Now().Add(-time.Minute).Unix())

	got, err := GetLoginSession(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("GetLoginSession: %v", err)
	}
	if got != nil {
		t.Errorf("expired session returned: %+v", got)
	}
}

func TestLoginSessionDelete(t *testing.T) {
	_, cleanup := setup()
	defer cleanup()
	ctx := context.Background()

	created, err := CreateLoginSession(ctx, LoginSession{State: "s", Nonce: "n", CodeVerifier: "v"})
	if err != nil {
		t.Fatalf("CreateLoginSession: %v", err)
	}
	if err := DeleteLoginSession(ctx, created.SessionID); err != nil {
		t.Fatalf("DeleteLoginSession: %v", err)
	}

	got, err := GetLoginSession(ctx, created.SessionID)
	if err != nil {
		t.Fatalf("GetLoginSession: %v", err)
	}
	if got != nil {
		t.Error("session survived delete")
	}
}
