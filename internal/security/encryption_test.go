package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/config"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
)

type EncryptionServiceSuite struct {
	suite.Suite
	vault EncryptionService
}

func TestEncryptionService(t *testing.T) {
	suite.Run(t, new(EncryptionServiceSuite))
}

func (s *EncryptionServiceSuite) SetupTest() {
	cfg := config.GetDefaultConfig()
	log, err := logger.NewLogger(cfg)
	s.Require().NoError(err)

	vault, err := NewEncryptionService(cfg, log)
	s.Require().NoError(err)
	s.vault = vault
}

func (s *EncryptionServiceSuite) TestEncryptDecryptRoundTrip() {
	ciphertext, err := s.vault.Encrypt("super-secret-signing-key")
	s.NoError(err)
	s.NotEqual("super-secret-signing-key", ciphertext)

	plaintext, err := s.vault.Decrypt(ciphertext)
	s.NoError(err)
	s.Equal("super-secret-signing-key", plaintext)
}

func (s *EncryptionServiceSuite) TestCiphertextFraming() {
	ciphertext, err := s.vault.Encrypt("payload")
	s.NoError(err)
	s.Len(strings.Split(ciphertext, ":"), 3)
}

func (s *EncryptionServiceSuite) TestEncryptIsNonDeterministic() {
	first, err := s.vault.Encrypt("payload")
	s.NoError(err)
	second, err := s.vault.Encrypt("payload")
	s.NoError(err)
	s.NotEqual(first, second)
}

func (s *EncryptionServiceSuite) TestTamperedCiphertextFailsAuthentication() {
	ciphertext, err := s.vault.Encrypt("payload")
	s.NoError(err)

	segments := strings.Split(ciphertext, ":")
	cipherHex := segments[2]
	flipped := "0"
	if strings.HasPrefix(cipherHex, "0") {
		flipped = "1"
	}
	segments[2] = flipped + cipherHex[1:]

	_, err = s.vault.Decrypt(strings.Join(segments, ":"))
	s.Error(err)
	s.True(ierr.Is(err, ierr.ErrDecrypt))
}

func (s *EncryptionServiceSuite) TestMalformedFramingFailsDecrypt() {
	for _, ciphertext := range []string{
		"",
		"onesegment",
		"two:segments",
		"a:b:c:d",
		"zz:zz:zz", // not hex
	} {
		_, err := s.vault.Decrypt(ciphertext)
		s.Error(err, "ciphertext %q", ciphertext)
		s.True(ierr.Is(err, ierr.ErrDecrypt), "ciphertext %q", ciphertext)
	}
}

func (s *EncryptionServiceSuite) TestWrongKeyFailsAuthentication() {
	ciphertext, err := s.vault.Encrypt("payload")
	s.NoError(err)

	otherKey, err := GenerateRandomKey()
	s.Require().NoError(err)
	cfg := config.GetDefaultConfig()
	cfg.Secrets.EncryptionKey = otherKey
	log, err := logger.NewLogger(cfg)
	s.Require().NoError(err)
	other, err := NewEncryptionService(cfg, log)
	s.Require().NoError(err)

	_, err = other.Decrypt(ciphertext)
	s.Error(err)
	s.True(ierr.Is(err, ierr.ErrDecrypt))
}

func (s *EncryptionServiceSuite) TestRejectsBadMasterKeys() {
	log, err := logger.NewLogger(config.GetDefaultConfig())
	s.Require().NoError(err)

	for _, key := range []string{
		"",
		"not-hex",
		"abcd", // too short
	} {
		cfg := config.GetDefaultConfig()
		cfg.Secrets.EncryptionKey = key
		_, err := NewEncryptionService(cfg, log)
		s.Error(err, "key %q", key)
	}
}
