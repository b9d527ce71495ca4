package browser

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const profileMarkerFile = "credentials.marker"

// ErrUnmanagedProfile is returned for a non-empty directory that was not
// created by PrepareProfile. It is never wiped.
var ErrUnmanagedProfile = errors.New("profile dir is not empty and has no credentials marker")

// ProfileKey identifies the credentials a browser profile was signed in with
func ProfileKey(email, password string) string {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return hex.EncodeToString(sum[:])[:16]
}

// PrepareProfile makes dir ready for a browser launched with the credentials
// identified by key. A profile created for the same key is reused so the
// provider sees a returning device, one created for other credentials is
// wiped. It reports whether the existing profile was reused.
func PrepareProfile(dir, key string) (bool, error) {
	if dir == "" {
		return false, errors.New("profile dir is empty")
	}
	markerPath := filepath.Join(dir, profileMarkerFile)

	existing, err := os.ReadFile(markerPath)
	switch {
	case err == nil:
		if strings.TrimSpace(string(existing)) == key {
			return true, nil
		}
	case errors.Is(err, fs.ErrNotExist):
		entries, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("failed to read profile dir %s: %w", dir, err)
		}
		if len(entries) > 0 {
			return false, fmt.Errorf("%s: %w", dir, ErrUnmanagedProfile)
		}
	default:
		return false, fmt.Errorf("failed to read profile marker: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to remove stale profile %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("failed to create profile %s: %w", dir, err)
	}
	if err := os.WriteFile(markerPath, []byte(key), 0o600); err != nil {
		return false, fmt.Errorf("failed to write profile marker: %w", err)
	}
	return false, nil
}
