package library

import (
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
)

// Admin is one credential record. Super is reserved for a future
// privilege split and is never set today.
type Admin struct {
	Username     string
	PasswordHash string
	Super        bool
}

// PasswordHasher hashes and verifies admin passwords. The store is
// written against this interface so the weak legacy hash can be swapped
// for a real KDF without touching the add/verify contract.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// FNVHasher is the legacy hash: FNV-1a 64-bit truncated to the low 32
// bits, rendered as 8 lowercase hex digits. Unsalted and fast; it only
// survives so that existing credential files keep verifying. New
// deployments should use BcryptHasher.
type FNVHasher struct{}

func (FNVHasher) Hash(plain string) (string, error) {
	h := fnv.New64a()
	h.Write([]byte(plain))
	return fmt.Sprintf("%08x", uint32(h.Sum64())), nil
}

func (FNVHasher) Verify(plain, hash string) bool {
	got, _ := FNVHasher{}.Hash(plain)
	return got == hash
}

// BcryptHasher is the proper KDF. Zero Cost means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) Hash(plain string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// AdminStore keeps username/password-hash pairs in an append-only CSV
// file, separate from the main snapshot store. Lookups are linear scans
// of the file, so every call sees the latest records.
type AdminStore struct {
	path   string
	hasher PasswordHasher
}

// NewAdminStore opens a credential store at path using hasher for new
// records. A nil hasher defaults to bcrypt.
func NewAdminStore(path string, hasher PasswordHasher) (*AdminStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty admin store path: %w", ErrInvalidArgument)
	}
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create admin dir: %w: %w", ErrIO, err)
		}
	}
	return &AdminStore{path: path, hasher: hasher}, nil
}

// readAll returns every credential record. A missing file is an empty
// store.
func (s *AdminStore) readAll() ([]Admin, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w: %w", s.path, ErrIO, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var admins []Admin
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w: %w", s.path, ErrIO, err)
		}
		if len(rec) < 2 || rec[0] == "" {
			continue
		}
		admins = append(admins, Admin{Username: rec[0], PasswordHash: rec[1]})
	}
	return admins, nil
}

// AddAdmin appends a new credential. The username must be unused.
func (s *AdminStore) AddAdmin(username, password string) error {
	if username == "" || password == "" {
		return fmt.Errorf("add admin: empty username or password: %w", ErrInvalidArgument)
	}
	admins, err := s.readAll()
	if err != nil {
		return err
	}
	for _, a := range admins {
		if a.Username == username {
			return fmt.Errorf("admin %q: %w", username, ErrAlreadyExists)
		}
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", s.path, ErrIO, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{username, hash}); err != nil {
		return fmt.Errorf("append %s: %w: %w", s.path, ErrIO, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append %s: %w: %w", s.path, ErrIO, err)
	}
	return nil
}

// VerifyAdmin checks a credential and returns the stored record on
// success. Unknown usernames and wrong passwords both report
// ErrAuthFailed. Records written by older deployments with the legacy
// FNV hash still verify.
func (s *AdminStore) VerifyAdmin(username, password string) (Admin, error) {
	if username == "" || password == "" {
		return Admin{}, fmt.Errorf("verify admin: empty username or password: %w", ErrInvalidArgument)
	}
	admins, err := s.readAll()
	if err != nil {
		return Admin{}, err
	}
	for _, a := range admins {
		if a.Username != username {
			continue
		}
		if s.hasher.Verify(password, a.PasswordHash) {
			return a, nil
		}
		if (FNVHasher{}).Verify(password, a.PasswordHash) {
			return a, nil
		}
		return Admin{}, fmt.Errorf("admin %q: %w", username, ErrAuthFailed)
	}
	return Admin{}, fmt.Errorf("admin %q: %w", username, ErrAuthFailed)
}

// ResetAdmin overwrites an existing admin's password, rewriting the file
// atomically.
func (s *AdminStore) ResetAdmin(username, newPassword string) error {
	if username == "" || newPassword == "" {
		return fmt.Errorf("reset admin: empty username or password: %w", ErrInvalidArgument)
	}
	admins, err := s.readAll()
	if err != nil {
		return err
	}
	found := false
	for i := range admins {
		if admins[i].Username == username {
			hash, err := s.hasher.Hash(newPassword)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			admins[i].PasswordHash = hash
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("admin %q: %w", username, ErrNotFound)
	}

	rows := make([][]string, 0, len(admins))
	for _, a := range admins {
		rows = append(rows, []string{a.Username, a.PasswordHash})
	}
	return writeCSVAtomic(s.path, rows)
}
