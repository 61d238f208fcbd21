package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	"contract-ledger/pkg/apierror"
)

const (
	keyFileExt = ".json"
	// common limit for a single path component (ext4, APFS, NTFS)
	maxFileNameLength = 255
	// escaped names past the limit keep this much of their prefix before the digest
	hashedNamePrefix = 128
)

// KeyValidator maps storage keys onto file names inside a single root.
type KeyValidator struct {
	rootAbs string
}

func NewKeyValidator(root string) (*KeyValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("state root cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve state root: %w", err)
	}

	return &KeyValidator{rootAbs: rootAbs}, nil
}

func (v *KeyValidator) RootAbs() string {
	return v.rootAbs
}

// ResolveKey returns the absolute file path backing key. Keys are query-escaped
// so separators and colons never reach the filesystem. An escaped name longer
// than a file name may be is shortened to a prefix plus its SHA-256 digest.
func (v *KeyValidator) ResolveKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", apierror.New("INVALID_KEY", "storage key cannot be empty", key, http.StatusBadRequest)
	}

	if hasControlCharacters(trimmed) {
		return "", apierror.New("INVALID_KEY", "storage key contains invalid characters", key, http.StatusBadRequest)
	}

	if trimmed == "." || trimmed == ".." {
		return "", apierror.New("INVALID_KEY", "storage key is reserved", key, http.StatusBadRequest)
	}

	resolved := filepath.Join(v.rootAbs, keyFileName(trimmed))
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	if !isWithinRoot(v.rootAbs, resolvedAbs) {
		return "", apierror.New("INVALID_KEY", "storage key resolves outside state root", key, http.StatusBadRequest)
	}

	return resolvedAbs, nil
}

func keyFileName(key string) string {
	escaped := url.QueryEscape(key)
	if len(escaped)+len(keyFileExt) <= maxFileNameLength {
		return escaped + keyFileExt
	}

	sum := sha256.Sum256([]byte(key))
	prefix := escaped[:hashedNamePrefix]
	// never split a %XX escape
	if i := strings.LastIndexByte(prefix, '%'); i >= len(prefix)-2 {
		prefix = prefix[:i]
	}
	return prefix + "~" + hex.EncodeToString(sum[:]) + keyFileExt
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}

	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	if candidateAbs == rootAbs {
		return false
	}

	rootWithSeparator := rootAbs + string(filepath.Separator)
	return strings.HasPrefix(candidateAbs, rootWithSeparator)
}
