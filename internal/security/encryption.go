package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"

	"github.com/meterline/meterline/internal/config"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
)

// segmentSeparator joins the three hex segments of a ciphertext:
// iv:tag:cipher
const segmentSeparator = ":"

// EncryptionService encrypts app signing secrets at rest
type EncryptionService interface {
	// Encrypt encrypts plaintext using AES-256-GCM
	Encrypt(plaintext string) (string, error)

	// Decrypt decrypts ciphertext produced by Encrypt. Fails with a
	// decrypt error on tag mismatch or malformed framing.
	Decrypt(ciphertext string) (string, error)
}

type aesEncryptionService struct {
	key    []byte
	logger *logger.Logger
}

// NewEncryptionService creates an encryption service from the 32-byte
// master key configured at startup. The key is read-only afterwards;
// rotating it requires a re-encryption pass.
func NewEncryptionService(cfg *config.Configuration, logger *logger.Logger) (EncryptionService, error) {
	if cfg.Secrets.EncryptionKey == "" {
		return nil, ierr.NewError("master encryption key not configured").
			Mark(ierr.ErrSystem)
	}

	key, err := hex.DecodeString(cfg.Secrets.EncryptionKey)
	if err != nil {
		return nil, ierr.WithError(err).
			WithMessage("encryption key must be hex encoded").
			Mark(ierr.ErrSystem)
	}
	if len(key) != 32 {
		return nil, ierr.NewErrorf("encryption key must be 32 bytes, got %d", len(key)).
			Mark(ierr.ErrSystem)
	}

	return &aesEncryptionService{
		key:    key,
		logger: logger,
	}, nil
}

func (s *aesEncryptionService) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("failed to create cipher block").
			Mark(ierr.ErrSystem)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("failed to create GCM").
			Mark(ierr.ErrSystem)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", ierr.WithError(err).
			WithMessage("failed to generate iv").
			Mark(ierr.ErrSystem)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)

	// gcm.Seal appends the tag after the ciphertext; split it back out
	// so the stored form is iv:tag:cipher.
	tagStart := len(sealed) - gcm.Overhead()
	cipherBytes, tag := sealed[:tagStart], sealed[tagStart:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(cipherBytes),
	}, segmentSeparator), nil
}

func (s *aesEncryptionService) Decrypt(ciphertext string) (string, error) {
	segments := strings.Split(ciphertext, segmentSeparator)
	if len(segments) != 3 {
		return "", ierr.NewError("malformed ciphertext framing").
			Mark(ierr.ErrDecrypt)
	}

	iv, err := hex.DecodeString(segments[0])
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("malformed iv segment").
			Mark(ierr.ErrDecrypt)
	}
	tag, err := hex.DecodeString(segments[1])
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("malformed tag segment").
			Mark(ierr.ErrDecrypt)
	}
	cipherBytes, err := hex.DecodeString(segments[2])
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("malformed cipher segment").
			Mark(ierr.ErrDecrypt)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("failed to create cipher block").
			Mark(ierr.ErrSystem)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("failed to create GCM").
			Mark(ierr.ErrSystem)
	}

	if len(iv) != gcm.NonceSize() || len(tag) != gcm.Overhead() {
		return "", ierr.NewError("malformed ciphertext framing").
			Mark(ierr.ErrDecrypt)
	}

	plaintext, err := gcm.Open(nil, iv, append(cipherBytes, tag...), nil)
	if err != nil {
		return "", ierr.WithError(err).
			WithMessage("authentication tag mismatch").
			Mark(ierr.ErrDecrypt)
	}

	return string(plaintext), nil
}

// GenerateRandomKey generates a random hex-encoded 32-byte key for AES-256
func GenerateRandomKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}
