// Package profile persists the console sign-in details issued to newly
// created users, one CSV record per user.
package profile

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Extension is the file extension of profile records.
const Extension = "csv"

// DefaultConsoleDomain is the provider domain used in sign-in URLs.
const DefaultConsoleDomain = "aws.amazon.com"

// ErrWrite indicates a profile record could not be persisted. The password it
// carried is lost, so callers treat this as fatal.
var ErrWrite = errors.New("writing login profile record")

// Header is the first row of every profile record.
var Header = []string{"username", "password", "url"}

// AccountResolver looks up the account identifier embedded in sign-in URLs.
type AccountResolver interface {
	AccountID(ctx context.Context) (string, error)
}

// Sink writes profile records into a directory.
type Sink struct {
	dir      string
	domain   string
	accounts AccountResolver
	index    *Index
	log      zerolog.Logger
	now      func() time.Time
	openFile func(name string, flag int, perm os.FileMode) (*os.File, error)

	mu        sync.Mutex
	accountID string
}

// Option configures a Sink.
type Option func(*Sink)

// WithConsoleDomain overrides DefaultConsoleDomain.
func WithConsoleDomain(domain string) Option {
	return func(s *Sink) {
		if domain != "" {
			s.domain = domain
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sink) {
		s.log = l
	}
}

// NewSink creates a Sink writing into dir.
func NewSink(dir string, accounts AccountResolver, opts ...Option) *Sink {
	s := &Sink{
		dir:      dir,
		domain:   DefaultConsoleDomain,
		accounts: accounts,
		index:    NewIndex(dir),
		log:      zerolog.Nop(),
		now:      time.Now,
		openFile: os.OpenFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConsoleURL builds the console sign-in URL for an account.
func ConsoleURL(accountID, domain string) string {
	return fmt.Sprintf("https://%s.signin.%s/console", accountID, domain)
}

// RecordPath returns the path of the record for username.
func RecordPath(dir, username string) string {
	return filepath.Join(dir, username+"."+Extension)
}

// account returns the account id, fetching it once per Sink. Failed lookups
// are not cached.
func (s *Sink) account(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountID != "" {
		return s.accountID, nil
	}
	id, err := s.accounts.AccountID(ctx)
	if err != nil {
		return "", err
	}
	s.accountID = id
	return id, nil
}

// Record persists the sign-in details for a newly created user. An existing
// record for the same user is never overwritten.
func (s *Sink) Record(ctx context.Context, username, password string) error {
	if username == "" || filepath.Base(username) != username || strings.ContainsAny(username, `/\`) {
		return fmt.Errorf("%w: unusable username %q", ErrWrite, username)
	}

	accountID, err := s.account(ctx)
	if err != nil {
		return fmt.Errorf("%w: resolving account id: %w", ErrWrite, err)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("%w: creating directory: %w", ErrWrite, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll([][]string{Header, {username, password, ConsoleURL(accountID, s.domain)}}); err != nil {
		return fmt.Errorf("%w: encoding record: %w", ErrWrite, err)
	}

	path := RecordPath(s.dir, username)
	f, err := s.openFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) //nolint:gosec // G304: name validated above
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	// A partial record would block every later attempt for this user, so it
	// is removed on failure.
	_, err = f.Write(buf.Bytes())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rerr := os.Remove(path); rerr != nil {
			s.log.Warn().Err(rerr).Str("file", path).Msg("could not remove partial profile record")
		}
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}

	// The password is already on disk; an index failure only loses metadata.
	entry := Entry{Username: username, File: filepath.Base(path), Created: s.now().UTC()}
	if err := s.index.Add(entry); err != nil {
		s.log.Warn().Err(err).Str("user", username).Msg("could not update profile index")
	}

	s.log.Debug().Str("user", username).Str("file", path).Msg("wrote login profile record")
	return nil
}
