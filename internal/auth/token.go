package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/domain/app"
	domainauth "github.com/meterline/meterline/internal/domain/auth"
	ierr "github.com/meterline/meterline/internal/errors"
	"github.com/meterline/meterline/internal/logger"
	"github.com/meterline/meterline/internal/security"
	"github.com/meterline/meterline/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// TokenAudience is the fixed audience every minted token carries
	TokenAudience = "billing-service"

	issuerPrefix = "app:"
)

// Verification failure messages. These are contractually stable; the
// auth middleware returns them verbatim as the response message.
const (
	MsgMalformedToken   = "Malformed Authorization header"
	MsgUnsupportedAlg   = "Unsupported algorithm"
	MsgUnknownKid       = "Unknown key ID"
	MsgRevokedKid       = "Key has been revoked"
	MsgInvalidSignature = "Invalid signature"
	MsgInvalidIssuer    = "Invalid issuer"
	MsgIssuerMismatch   = "Issuer does not match appId"
	MsgInvalidAudience  = "Invalid audience"
	MsgAppIDMismatch    = "appId does not match key"
	MsgTokenFromFuture  = "Token issued in the future"
	MsgTokenExpired     = "Token expired"
	MsgTokenReplayed    = "Token has already been used"
)

func verdict(msg string) error {
	return ierr.NewError(msg).
		WithHint(msg).
		Mark(ierr.ErrUnauthorized)
}

// MintRequest describes the token to mint. TTLSeconds falls back to
// the configured default when zero.
type MintRequest struct {
	AppID      string
	Kid        string
	Subject    string
	TeamID     string
	UserID     string
	Scopes     []string
	TTLSeconds int
}

// TokenEngine mints and verifies HS256 tokens signed with app secrets.
// Clock and replay store are injected so verification is deterministic
// under test.
type TokenEngine struct {
	secrets app.Repository
	vault   security.EncryptionService
	replay  domainauth.ReplayRepository
	clock   types.Clock
	ttl     time.Duration
	skew    time.Duration
	logger  *logger.Logger
}

func NewTokenEngine(
	cfg *config.Configuration,
	secrets app.Repository,
	vault security.EncryptionService,
	replay domainauth.ReplayRepository,
	clock types.Clock,
	logger *logger.Logger,
) *TokenEngine {
	return &TokenEngine{
		secrets: secrets,
		vault:   vault,
		replay:  replay,
		clock:   clock,
		ttl:     time.Duration(cfg.Auth.JWTTTLSeconds) * time.Second,
		skew:    time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		logger:  logger,
	}
}

// Mint signs a token with the secret identified by req.Kid. The key
// must belong to req.AppID and be active.
func (e *TokenEngine) Mint(ctx context.Context, req MintRequest) (string, error) {
	if req.AppID == "" || req.Kid == "" {
		return "", ierr.NewError("app_id and kid are required").
			WithHint("App ID and key ID are required").
			Mark(ierr.ErrValidation)
	}

	secret, err := e.secrets.GetSecretByKid(ctx, req.Kid)
	if err != nil {
		return "", err
	}
	if secret.AppID != req.AppID {
		return "", verdict(MsgAppIDMismatch)
	}
	if secret.Status != types.SecretStatusActive {
		return "", verdict(MsgRevokedKid)
	}

	plaintext, err := e.vault.Decrypt(secret.EncryptedSecret)
	if err != nil {
		return "", err
	}

	ttl := e.ttl
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	now := e.clock.Now()

	claims := Claims{
		Issuer:   issuerPrefix + req.AppID,
		Audience: TokenAudience,
		Subject:  req.Subject,
		AppID:    req.AppID,
		TeamID:   req.TeamID,
		UserID:   req.UserID,
		Scopes:   req.Scopes,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(ttl).Unix(),
		Jti:      types.GenerateUUIDWithPrefix(types.UUID_PREFIX_JTI),
		Kid:      req.Kid,
	}
	if claims.Scopes == nil {
		claims.Scopes = []string{}
	}

	return e.sign(claims, []byte(plaintext))
}

func (e *TokenEngine) sign(claims Claims, key []byte) (string, error) {
	headerJSON, err := json.Marshal(map[string]string{
		"alg": jwt.SigningMethodHS256.Alg(),
		"typ": "JWT",
		"kid": claims.Kid,
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to encode token header").
			Mark(ierr.ErrSystem)
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to encode token claims").
			Mark(ierr.ErrSystem)
	}

	signingString := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	sig, err := jwt.SigningMethodHS256.Sign(signingString, key)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to sign token").
			Mark(ierr.ErrSystem)
	}
	return signingString + "." + sig, nil
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid"`
}

// Verify checks the token end to end and consumes its jti. The checks
// run in a fixed order so a given bad token always fails the same way:
// framing, algorithm, key resolution, signature, issuer and audience,
// key binding, time window, replay.
func (e *TokenEngine) Verify(ctx context.Context, tokenString string) (*VerifiedClaims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, verdict(MsgMalformedToken)
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, verdict(MsgMalformedToken)
	}
	var header tokenHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, verdict(MsgMalformedToken)
	}
	if header.Alg != jwt.SigningMethodHS256.Alg() {
		return nil, verdict(MsgUnsupportedAlg)
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, verdict(MsgMalformedToken)
	}
	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return nil, verdict(MsgMalformedToken)
	}

	secret, err := e.secrets.GetSecretByKid(ctx, header.Kid)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, verdict(MsgUnknownKid)
		}
		return nil, err
	}
	if secret.Status == types.SecretStatusRevoked {
		return nil, verdict(MsgRevokedKid)
	}

	plaintext, err := e.vault.Decrypt(secret.EncryptedSecret)
	if err != nil {
		return nil, err
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], parts[2], []byte(plaintext)); err != nil {
		return nil, verdict(MsgInvalidSignature)
	}

	if !strings.HasPrefix(claims.Issuer, issuerPrefix) {
		return nil, verdict(MsgInvalidIssuer)
	}
	if subtle.ConstantTimeCompare([]byte(claims.Issuer), []byte(issuerPrefix+claims.AppID)) != 1 {
		return nil, verdict(MsgIssuerMismatch)
	}
	if claims.Audience != TokenAudience {
		return nil, verdict(MsgInvalidAudience)
	}
	if secret.AppID != claims.AppID {
		return nil, verdict(MsgAppIDMismatch)
	}

	now := e.clock.Now()
	if time.Unix(claims.IssuedAt, 0).After(now.Add(e.skew)) {
		return nil, verdict(MsgTokenFromFuture)
	}
	exp := time.Unix(claims.Expiry, 0)
	if !exp.After(now.Add(-e.skew)) {
		return nil, verdict(MsgTokenExpired)
	}

	if claims.Jti == "" {
		return nil, verdict(MsgMalformedToken)
	}
	if err := e.replay.Insert(ctx, claims.Jti, exp); err != nil {
		if ierr.IsAlreadyExists(err) {
			return nil, verdict(MsgTokenReplayed)
		}
		return nil, err
	}

	return &VerifiedClaims{
		AppID:  claims.AppID,
		TeamID: claims.TeamID,
		UserID: claims.UserID,
		Scopes: claims.Scopes,
		Kid:    header.Kid,
		Jti:    claims.Jti,
	}, nil
}
