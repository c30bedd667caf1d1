// Package store persists the backend's accumulators and local control
// users across restarts in an embedded key/value database.
package store

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/asdine/storm/v3"
	"golang.org/x/crypto/bcrypt"

	"github.com/AuroraRoboticsLab/MiningRobot/robotstate"
)

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = storm.ErrNotFound

// User is a local control-surface account: email/password login, with an
// admin flag gating the daily_start/stow requests.
type User struct {
	ID       int    `storm:"increment"`
	Email    string `storm:"unique"`
	Name     string
	Password string
	Admin    bool
}

// SetPassword replaces u.Password with pass's bcrypt hash.
func (u *User) SetPassword(pass []byte) error {
	hash, err := bcrypt.GenerateFromPassword(pass, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// VerifyPassword compares u.Password against pass, returning bcrypt's own
// error values for the caller to discriminate on.
func (u *User) VerifyPassword(pass []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), pass)
}

// AccumRecord is the on-disk form of robotstate.Accum, keyed by a fixed ID
// since the backend only ever persists one robot's accumulators.
type AccumRecord struct {
	ID    int `storm:"id"`
	Accum robotstate.Accum
}

const accumRecordID = 1

// Store wraps an open storm database.
type Store struct {
	db *storm.DB
}

// Open opens (creating if necessary) the database file at path, making
// sure its parent directory exists.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	db, err := storm.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// LoadAccum restores the persisted accumulators, matching the original's
// "Restore previous accumulated data" startup step. A fresh database
// returns the zero value, not an error.
func (s *Store) LoadAccum() (robotstate.Accum, error) {
	var rec AccumRecord
	err := s.db.One("ID", accumRecordID, &rec)
	if errors.Is(err, storm.ErrNotFound) {
		return robotstate.Accum{}, nil
	}
	if err != nil {
		return robotstate.Accum{}, err
	}
	return rec.Accum, nil
}

// SaveAccum persists accum, overwriting any previous record.
func (s *Store) SaveAccum(accum robotstate.Accum) error {
	return s.db.Save(&AccumRecord{ID: accumRecordID, Accum: accum})
}

// CreateUser saves a new user record with the given email/password.
func (s *Store) CreateUser(email, name string, password []byte, admin bool) (*User, error) {
	u := &User{Email: email, Name: name, Admin: admin}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.db.Save(u); err != nil {
		return nil, err
	}
	return u, nil
}

// UserByEmail looks up a user by email, returning ErrNotFound if none exists.
func (s *Store) UserByEmail(email string) (*User, error) {
	var u User
	if err := s.db.One("Email", email, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
