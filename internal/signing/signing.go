// Package signing re-signs a module with a strong-name key after it has been
// rewritten. Any edit to a signed module invalidates its signature, so the
// key has to be found again and the signature recomputed.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"varweave/internal/config"
	"varweave/internal/logging"
	"varweave/internal/metadata"
	"varweave/internal/modfile"
)

var (
	// ErrKeyNotFound is returned when a key file was named but does not exist.
	ErrKeyNotFound = errors.New("strong-name key file not found")
	// ErrUnsigned is returned by Verify for modules without a signature.
	ErrUnsigned = errors.New("module is not signed")
	// ErrBadSignature is returned by Verify when the signature does not match.
	ErrBadSignature = errors.New("strong-name signature does not match")
)

// Key is a loaded strong-name key. Private is nil for public-key-only
// (delay signing) keys.
type Key struct {
	Path    string
	Public  []byte
	Private *rsa.PrivateKey
}

// CanSign reports whether the key holds a private half.
func (k *Key) CanSign() bool { return k != nil && k.Private != nil }

// FindKeyFile locates the key for m. An explicit key file wins; otherwise
// the first argument of the module's AssemblyKeyFileAttribute is resolved
// against the intermediate directory. It returns "" when neither names one.
func FindKeyFile(c config.SigningConfig, m *metadata.Module) (string, error) {
	log := logging.Get(logging.CategorySigning)

	if c.KeyFile != "" {
		path, err := filepath.Abs(c.KeyFile)
		if err != nil {
			return "", fmt.Errorf("failed to resolve key file: %w", err)
		}
		log.Debug("using explicit key file", zap.String("path", path))
		return path, nil
	}

	if m != nil {
		if ca := m.FindAttribute(metadata.AssemblyKeyFileAttribute); ca != nil && len(ca.Arguments) > 0 && ca.Arguments[0] != "" {
			path := ca.Arguments[0]
			if !filepath.IsAbs(path) {
				path = filepath.Join(c.IntermediateDir, path)
			}
			log.Debug("using key file from AssemblyKeyFileAttribute", zap.String("path", path))
			return path, nil
		}
	}

	log.Debug("no key file found")
	return "", nil
}

// LoadKey reads a key file. PEM RSA private keys (PKCS#1 or PKCS#8) give a
// full key pair. A PEM public key, or any other content, is taken as the
// public key alone.
func LoadKey(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, path)
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key := &Key{Path: path}
	block, _ := pem.Decode(data)
	if block == nil {
		key.Public = data
		logging.Get(logging.CategorySigning).Info("key file holds no key pair, delay signing",
			zap.String("path", path))
		return key, nil
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		key.Private = priv
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		priv, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s: strong-name keys must be RSA, got %T", path, parsed)
		}
		key.Private = priv
	default:
		key.Public = block.Bytes
		return key, nil
	}

	key.Public, err = x509.MarshalPKIXPublicKey(&key.Private.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}
	return key, nil
}

// Sign stamps m with the key's public half and, for a full key pair, an RSA
// PKCS#1 v1.5 signature over the module digest. A public-only key clears
// any stale signature.
func Sign(m *metadata.Module, key *Key) error {
	if key == nil {
		return errors.New("no signing key")
	}
	m.PublicKey = key.Public
	m.Signature = nil

	if !key.CanSign() {
		logging.Get(logging.CategorySigning).Info("module delay signed", zap.String("module", m.Name))
		return nil
	}

	hashed, err := modfile.Digest(m)
	if err != nil {
		return err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, key.Private, crypto.SHA256, hashed)
	if err != nil {
		return fmt.Errorf("failed to sign module: %w", err)
	}
	m.Signature = sig

	logging.Get(logging.CategorySigning).Info("module signed",
		zap.String("module", m.Name),
		zap.String("key", key.Path),
		zap.String("token", Token(key.Public)))
	return nil
}

// Verify checks m's signature against its embedded public key.
func Verify(m *metadata.Module) error {
	if len(m.Signature) == 0 {
		return ErrUnsigned
	}
	parsed, err := x509.ParsePKIXPublicKey(m.PublicKey)
	if err != nil {
		return fmt.Errorf("failed to parse module public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("module public key is %T, not RSA", parsed)
	}

	hashed, err := modfile.Digest(m)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed, m.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}

// Token is a short hex identifier for a public key: the last eight bytes of
// its SHA-256, reversed, in the style of a public key token.
func Token(pub []byte) string {
	if len(pub) == 0 {
		return ""
	}
	sum := sha256.Sum256(pub)
	tail := sum[len(sum)-8:]
	out := make([]byte, 0, 16)
	const hexdigits = "0123456789abcdef"
	for i := len(tail) - 1; i >= 0; i-- {
		out = append(out, hexdigits[tail[i]>>4], hexdigits[tail[i]&0x0f])
	}
	return string(out)
}
