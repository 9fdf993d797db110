package authstore

import (
	"path/filepath"
	"strings"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestCreateUserAndLogin(t *testing.T) {
	store := openTestStore(t)

	const username = "testuser"
	const password = "testpassword123"

	created, err := store.CreateUser(username, password)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !created {
		t.Error("CreateUser returned false for a new user")
	}

	duplicate, err := store.CreateUser(username, password)
	if err != nil {
		t.Fatalf("CreateUser duplicate: %v", err)
	}
	if duplicate {
		t.Error("creating a duplicate user returned true")
	}

	ok, err := store.Login(username, password)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !ok {
		t.Error("login with correct password failed")
	}

	ok, err = store.Login(username, "wrongpassword")
	if err != nil {
		t.Fatalf("Login wrong password: %v", err)
	}
	if ok {
		t.Error("login with wrong password succeeded")
	}

	ok, err = store.Login("nonexistent", password)
	if err != nil {
		t.Fatalf("Login unknown user: %v", err)
	}
	if ok {
		t.Error("login with non-existent user succeeded")
	}
}

func TestStoredHashIsArgon2PHC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.CreateUser("alice", "secret"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Inspect the raw database: no plaintext, PHC-format Argon2id value.
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatalf("bolt.Open: %v", err)
	}
	defer db.Close()

	var stored string
	err = db.View(func(tx *bolt.Tx) error {
		stored = string(tx.Bucket(usersBucket).Get([]byte("alice")))
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	if !strings.HasPrefix(stored, "$argon2id$v=19$m=65536,t=3,p=4$") {
		t.Errorf("stored value %q is not an argon2id PHC string", stored)
	}
	if strings.Contains(stored, "secret") {
		t.Error("stored value contains the plaintext password")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h1, err := hashPassword("same password")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	h2, err := hashPassword("same password")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical; salt is not random")
	}
}

func TestVerifyPassword(t *testing.T) {
	phc, err := hashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}

	ok, err := verifyPassword("hunter2", phc)
	if err != nil {
		t.Fatalf("verifyPassword: %v", err)
	}
	if !ok {
		t.Error("correct password did not verify")
	}

	ok, err = verifyPassword("hunter3", phc)
	if err != nil {
		t.Fatalf("verifyPassword wrong password: %v", err)
	}
	if ok {
		t.Error("wrong password verified")
	}

	if _, err := verifyPassword("x", "$bcrypt$whatever"); err == nil {
		t.Error("malformed PHC string did not error")
	}
}

func TestLoginEmptyPassword(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.CreateUser("alice", "secret"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ok, err := store.Login("alice", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if ok {
		t.Error("empty password verified")
	}
}
