package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/meterline/meterline/internal/domain/app"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/security"
	"github.com/meterline/meterline/internal/testutil"
	"github.com/meterline/meterline/internal/types"
)

type TokenEngineSuite struct {
	testutil.BaseServiceTestSuite
	engine *TokenEngine
	vault  security.EncryptionService

	appID string
}

func TestTokenEngine(t *testing.T) {
	suite.Run(t, new(TokenEngineSuite))
}

func (s *TokenEngineSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	vault, err := security.NewEncryptionService(s.GetConfig(), s.GetLogger())
	s.Require().NoError(err)
	s.vault = vault

	s.engine = NewTokenEngine(
		s.GetConfig(),
		s.GetStores().AppRepo,
		vault,
		s.GetStores().ReplayRepo,
		s.GetClock(),
		s.GetLogger(),
	)

	a := &app.App{
		ID:        "app_1",
		Name:      "Acme",
		Status:    types.AppStatusActive,
		BaseModel: types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().AppRepo.CreateApp(s.GetContext(), a))
	s.appID = a.ID
}

// mintKey stores an encrypted signing secret and returns its kid.
func (s *TokenEngineSuite) mintKey(appID string) string {
	plaintext, err := security.GenerateRandomKey()
	s.Require().NoError(err)
	encrypted, err := s.vault.Encrypt(plaintext)
	s.Require().NoError(err)

	secret := &app.Secret{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_APP_SECRET),
		AppID:           appID,
		Kid:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_APP_SECRET),
		EncryptedSecret: encrypted,
		Status:          types.SecretStatusActive,
		CreatedAt:       s.GetNow(),
	}
	s.NoError(s.GetStores().AppRepo.CreateSecret(s.GetContext(), secret))
	return secret.Kid
}

func (s *TokenEngineSuite) mint(kid string) string {
	token, err := s.engine.Mint(s.GetContext(), MintRequest{
		AppID:  s.appID,
		Kid:    kid,
		TeamID: "team_1",
		UserID: "user_1",
		Scopes: []string{"billing:read"},
	})
	s.Require().NoError(err)
	return token
}

func (s *TokenEngineSuite) TestMintAndVerifyRoundTrip() {
	kid := s.mintKey(s.appID)
	token := s.mint(kid)

	claims, err := s.engine.Verify(s.GetContext(), token)
	s.NoError(err)
	s.Equal(s.appID, claims.AppID)
	s.Equal("team_1", claims.TeamID)
	s.Equal("user_1", claims.UserID)
	s.Equal(kid, claims.Kid)
	s.True(claims.HasScope("billing:read"))
	s.False(claims.HasScope("billing:write"))
	s.NotEmpty(claims.Jti)
}

func (s *TokenEngineSuite) TestVerifyConsumesJti() {
	kid := s.mintKey(s.appID)
	token := s.mint(kid)

	_, err := s.engine.Verify(s.GetContext(), token)
	s.NoError(err)

	_, err = s.engine.Verify(s.GetContext(), token)
	s.Error(err)
	s.ErrorContains(err, MsgTokenReplayed)
	s.True(ierr.Is(err, ierr.ErrUnauthorized))
}

func (s *TokenEngineSuite) TestExpiredTokenIsRejected() {
	kid := s.mintKey(s.appID)
	token := s.mint(kid)

	// The configured TTL is 60 seconds.
	s.AdvanceClock(61 * time.Second)

	_, err := s.engine.Verify(s.GetContext(), token)
	s.Error(err)
	s.ErrorContains(err, MsgTokenExpired)
}

func (s *TokenEngineSuite) TestTokenFromTheFutureIsRejected() {
	kid := s.mintKey(s.appID)
	token := s.mint(kid)

	s.AdvanceClock(-time.Minute)

	_, err := s.engine.Verify(s.GetContext(), token)
	s.Error(err)
	s.ErrorContains(err, MsgTokenFromFuture)
}

func (s *TokenEngineSuite) TestRevokedKeyIsRejected() {
	kid := s.mintKey(s.appID)
	token := s.mint(kid)

	s.NoError(s.GetStores().AppRepo.RevokeSecret(s.GetContext(), s.appID, kid))

	_, err := s.engine.Verify(s.GetContext(), token)
	s.Error(err)
	s.ErrorContains(err, MsgRevokedKid)
}

func (s *TokenEngineSuite) TestUnknownKidIsRejected() {
	kid := s.mintKey(s.appID)
	token := s.mint(kid)

	s.GetStores().AppRepo.(*testutil.InMemoryAppStore).Clear()

	_, err := s.engine.Verify(s.GetContext(), token)
	s.Error(err)
	s.ErrorContains(err, MsgUnknownKid)
}

func (s *TokenEngineSuite) TestTamperedSignatureIsRejected() {
	kid := s.mintKey(s.appID)
	token := s.mint(kid)

	flipped := "A"
	if strings.HasSuffix(token, "A") {
		flipped = "B"
	}
	tampered := token[:len(token)-1] + flipped

	_, err := s.engine.Verify(s.GetContext(), tampered)
	s.Error(err)
	s.ErrorContains(err, MsgInvalidSignature)
}

func (s *TokenEngineSuite) TestTamperedClaimsAreRejected() {
	kid := s.mintKey(s.appID)
	token := s.mint(kid)

	// Swap the payload for one claiming another team; the signature no
	// longer matches.
	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	s.Require().NoError(err)
	forged := strings.Replace(string(payload), "team_1", "team_2", 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = s.engine.Verify(s.GetContext(), strings.Join(parts, "."))
	s.Error(err)
	s.ErrorContains(err, MsgInvalidSignature)
}

func (s *TokenEngineSuite) TestMalformedTokenIsRejected() {
	_, err := s.engine.Verify(s.GetContext(), "not-a-token")
	s.Error(err)
	s.ErrorContains(err, MsgMalformedToken)
}

func (s *TokenEngineSuite) TestUnsupportedAlgorithmIsRejected() {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT","kid":"k"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{}`))

	_, err := s.engine.Verify(s.GetContext(), header+"."+payload+".sig")
	s.Error(err)
	s.ErrorContains(err, MsgUnsupportedAlg)
}

func (s *TokenEngineSuite) TestMintRejectsForeignKey() {
	other := &app.App{
		ID:        "app_2",
		Name:      "Other",
		Status:    types.AppStatusActive,
		BaseModel: types.GetDefaultBaseModel(s.GetNow()),
	}
	s.NoError(s.GetStores().AppRepo.CreateApp(s.GetContext(), other))
	kid := s.mintKey(other.ID)

	_, err := s.engine.Mint(s.GetContext(), MintRequest{AppID: s.appID, Kid: kid})
	s.Error(err)
	s.ErrorContains(err, MsgAppIDMismatch)
}

func (s *TokenEngineSuite) TestMintRejectsRevokedKey() {
	kid := s.mintKey(s.appID)
	s.NoError(s.GetStores().AppRepo.RevokeSecret(s.GetContext(), s.appID, kid))

	_, err := s.engine.Mint(s.GetContext(), MintRequest{AppID: s.appID, Kid: kid})
	s.Error(err)
	s.ErrorContains(err, MsgRevokedKid)
}

func (s *TokenEngineSuite) TestMintRequiresAppAndKid() {
	_, err := s.engine.Mint(s.GetContext(), MintRequest{AppID: s.appID})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *TokenEngineSuite) TestCustomTTLOverridesDefault() {
	kid := s.mintKey(s.appID)
	token, err := s.engine.Mint(s.GetContext(), MintRequest{
		AppID:      s.appID,
		Kid:        kid,
		TTLSeconds: 300,
	})
	s.NoError(err)

	// Still valid well past the 60 second default.
	s.AdvanceClock(4 * time.Minute)
	claims, err := s.engine.Verify(s.GetContext(), token)
	s.NoError(err)
	s.Equal(s.appID, claims.AppID)
}
