package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Key identifies one cached analysis.
type Key struct {
	FileHash string
	Mode     string
	Lyrics   bool
}

// String renders the primary-key form "hash:mode:lyrics".
func (k Key) String() string {
	flag := "0"
	if k.Lyrics {
		flag = "1"
	}
	return k.FileHash + ":" + strings.ToLower(k.Mode) + ":" + flag
}

// HashFile returns the hex SHA-256 of the file contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// KeyFor hashes path and combines it with the analysis options.
func KeyFor(path, mode string, lyrics bool) (Key, error) {
	hash, err := HashFile(path)
	if err != nil {
		return Key{}, err
	}
	return Key{FileHash: hash, Mode: strings.ToLower(strings.TrimSpace(mode)), Lyrics: lyrics}, nil
}
