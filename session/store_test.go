package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(rdb, "acs"), mr
}

func testSession(credentialID string, hash [32]byte) *Session {
	now := time.Now().Unix()
	return &Session{
		CredentialID: credentialID,
		Subject:      "user-42",
		Domain:       "global",
		RefreshHash:  hash,
		CreatedAt:    now,
		ExpiresAt:    now + 3600,
	}
}

func TestSaveGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("secret-1"))
	sess := testSession("cred-abc", hash)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "cred-abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Subject != "user-42" || got.Domain != "global" {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.RefreshHash != hash {
		t.Fatal("refresh hash not preserved")
	}
	if got.CredentialID != "cred-abc" {
		t.Fatalf("credential id not restored, got %q", got.CredentialID)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRotateRefreshHashSwapsInPlace(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	oldHash := sha256.Sum256([]byte("secret-old"))
	newHash := sha256.Sum256([]byte("secret-new"))
	if err := store.Save(ctx, testSession("cred-rot", oldHash), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sess, err := store.RotateRefreshHash(ctx, "cred-rot", oldHash, newHash)
	if err != nil {
		t.Fatalf("RotateRefreshHash failed: %v", err)
	}
	if sess.RefreshHash != newHash {
		t.Fatal("expected rotated hash in returned session")
	}
	if sess.Subject != "user-42" {
		t.Fatalf("session fields lost across rotation: %+v", sess)
	}

	got, err := store.Get(ctx, "cred-rot")
	if err != nil {
		t.Fatalf("Get after rotate failed: %v", err)
	}
	if got.RefreshHash != newHash {
		t.Fatal("rotated hash not persisted")
	}
}

func TestRotateRefreshHashMismatchDestroysSession(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	current := sha256.Sum256([]byte("secret-current"))
	stale := sha256.Sum256([]byte("secret-stale"))
	next := sha256.Sum256([]byte("secret-next"))
	if err := store.Save(ctx, testSession("cred-reuse", current), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.RotateRefreshHash(ctx, "cred-reuse", stale, next)
	if !errors.Is(err, ErrRefreshHashMismatch) {
		t.Fatalf("expected ErrRefreshHashMismatch, got %v", err)
	}

	if _, err := store.Get(ctx, "cred-reuse"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session destroyed after reuse, got %v", err)
	}
}

func TestRotateRefreshHashExpired(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("secret"))
	sess := testSession("cred-exp", hash)
	sess.ExpiresAt = time.Now().Unix() - 10
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.RotateRefreshHash(ctx, "cred-exp", hash, hash)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRotateRefreshHashNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	hash := sha256.Sum256([]byte("whatever"))
	_, err := store.RotateRefreshHash(context.Background(), "cred-none", hash, hash)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("secret"))
	if err := store.Save(ctx, testSession("cred-del", hash), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	existed, err := store.Delete(ctx, "cred-del")
	if err != nil || !existed {
		t.Fatalf("first delete: existed=%v err=%v", existed, err)
	}
	existed, err = store.Delete(ctx, "cred-del")
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}

func TestDeleteAllForSubject(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	hash := sha256.Sum256([]byte("secret"))
	for _, cid := range []string{"cred-1", "cred-2", "cred-3"} {
		if err := store.Save(ctx, testSession(cid, hash), time.Hour); err != nil {
			t.Fatalf("Save %s failed: %v", cid, err)
		}
	}

	// different subject, must survive
	other := testSession("cred-other", hash)
	other.Subject = "user-99"
	if err := store.Save(ctx, other, time.Hour); err != nil {
		t.Fatalf("Save other failed: %v", err)
	}

	n, err := store.DeleteAllForSubject(ctx, "global", "user-42")
	if err != nil {
		t.Fatalf("DeleteAllForSubject failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}

	if _, err := store.Get(ctx, "cred-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatal("expected cred-1 destroyed")
	}
	if _, err := store.Get(ctx, "cred-other"); err != nil {
		t.Fatalf("expected other subject session to survive: %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "any")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestEncodeDecodeRejectsCorrupt(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected corrupt error for nil, got %v", err)
	}
	if _, err := Decode([]byte{9, 1, 'a'}); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected corrupt error for bad version, got %v", err)
	}

	sess := testSession("x", sha256.Sum256([]byte("s")))
	blob, err := Encode(sess)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := Decode(blob[:len(blob)-1]); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected corrupt error for truncated blob, got %v", err)
	}
}
