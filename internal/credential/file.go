package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/campus-kit/internal/crypto"
	"github.com/and161185/campus-kit/internal/model"
)

var credentialAAD = []byte("campus-kit/credential/v1")

// File is a Store persisted as a JSON file (mode 0600) under a config directory.
// With a passphrase the file is sealed: salt || XChaCha20-Poly1305(json).
// An unreadable or undecryptable file is treated as "logged out".
type File struct {
	Memory

	path string
	key  []byte
	salt []byte
	log  *zap.Logger

	mu sync.Mutex // serializes disk writes
}

var (
	_ Store   = (*File)(nil)
	_ Swapper = (*File)(nil)
)

// FileOption configures OpenFile.
type FileOption func(*File)

// WithPassphrase seals the file with a key derived from passphrase (Argon2id).
func WithPassphrase(passphrase string) FileOption {
	return func(f *File) {
		if passphrase != "" {
			f.key = []byte(passphrase)
		}
	}
}

// WithLogger sets the logger used to report hydration problems.
func WithLogger(log *zap.Logger) FileOption {
	return func(f *File) { f.log = log }
}

// OpenFile loads the credential stored at path, if any.
func OpenFile(path string, opts ...FileOption) (*File, error) {
	f := &File{path: path, log: zap.NewNop()}
	for _, o := range opts {
		o(f)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("credential dir: %w", err)
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		raw = nil
	case err != nil:
		f.log.Warn("credential file unreadable, starting logged out", zap.String("path", path), zap.Error(err))
		raw = nil
	}

	if f.key != nil {
		passphrase := f.key
		if len(raw) >= crypto.SaltLen {
			f.salt = append([]byte(nil), raw[:crypto.SaltLen]...)
		} else {
			if f.salt, err = crypto.RandBytes(crypto.SaltLen); err != nil {
				return nil, err
			}
		}
		if f.key, err = crypto.SubKey(crypto.DeriveKey(passphrase, f.salt), credentialAAD); err != nil {
			return nil, err
		}
	}

	if len(raw) > 0 {
		c, err := f.decode(raw)
		if err != nil {
			f.log.Warn("credential file corrupt, starting logged out", zap.String("path", path), zap.Error(err))
		} else {
			_ = f.Memory.Set(c)
		}
	}
	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Set writes the credential to disk, then publishes it.
func (f *File) Set(c model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.write(c); err != nil {
		return err
	}
	return f.Memory.Set(c)
}

// Clear removes the file and the in-memory credential.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.Memory.Clear()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}

// CompareAndSwap persists next only if the current credential equals old.
func (f *File) CompareAndSwap(old, next model.Credential) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.Memory.Get(); !ok || cur != old {
		return false, nil
	}
	if err := f.write(next); err != nil {
		return false, err
	}
	return f.Memory.CompareAndSwap(old, next)
}

func (f *File) write(c model.Credential) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if f.key != nil {
		sealed, err := crypto.Seal(f.key, b, credentialAAD)
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
		b = append(append([]byte(nil), f.salt...), sealed...)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credential-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) decode(raw []byte) (model.Credential, error) {
	var c model.Credential
	if f.key != nil {
		if len(raw) < crypto.SaltLen {
			return c, crypto.ErrSealedTooShort
		}
		plain, err := crypto.Open(f.key, raw[crypto.SaltLen:], credentialAAD)
		if err != nil {
			return c, err
		}
		raw = plain
	}
	err := json.Unmarshal(raw, &c)
	return c, err
}

// DefaultPath returns the credential file location under XDG_CONFIG_HOME
// (or ~/.config) for the given application name.
func DefaultPath(app string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, app, "credential.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", app, "credential.json")
}
