// Package authstore persists user credentials in an embedded bbolt database.
// Keys are usernames; values are Argon2id hashes in PHC string format, so the
// database never holds a plaintext or reversible password.
package authstore

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var usersBucket = []byte("users")

// Store is a credential store backed by a single bbolt database file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the credential database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening credential database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing credential database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser stores a new user with the given password.
// Returns true iff the user was newly created, false if the username
// already exists. The password is salted and hashed with Argon2id before
// it touches the database.
func (s *Store) CreateUser(username, password string) (bool, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hashing password: %w", err)
	}

	created := false
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b.Get([]byte(username)) != nil {
			return nil
		}
		created = true
		return b.Put([]byte(username), []byte(hash))
	})
	if err != nil {
		return false, fmt.Errorf("storing user %q: %w", username, err)
	}

	return created, nil
}

// Login verifies the given credentials.
// Returns true iff the user exists and the password matches. An unknown
// user and a wrong password are indistinguishable to the caller.
func (s *Store) Login(username, password string) (bool, error) {
	var stored []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(usersBucket).Get([]byte(username)); v != nil {
			stored = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reading user %q: %w", username, err)
	}

	if stored == nil {
		return false, nil
	}

	ok, err := verifyPassword(password, string(stored))
	if err != nil {
		return false, fmt.Errorf("verifying credentials for %q: %w", username, err)
	}
	return ok, nil
}
