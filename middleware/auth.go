package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/novaclub/club-sync/store"
	"github.com/tv42/zbase32"
)

type contextKey string

const (
	PRINCIPAL_CONTEXT_KEY contextKey = "principal"
)

var (
	ErrInternalError    = errors.New("internal error")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMissingToken     = errors.New("not authenticated")
	ErrInvalidToken     = errors.New("could not validate credentials")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInactiveUser     = errors.New("user account is inactive")
	ErrInvalidApiKey    = errors.New("invalid api key")
)

var SignedMsgPrefix = []byte("clubsync:")

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	ClubID string
	Role   store.Role
}

func (p *Principal) IsAdmin() bool {
	return p.Role == store.RoleAdmin
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, PRINCIPAL_CONTEXT_KEY, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PRINCIPAL_CONTEXT_KEY).(*Principal)
	return p, ok && p != nil
}

// Authenticator turns request credentials into a principal. The token
// proves who the caller was when it was issued; the account is reloaded on
// every request so deactivated or deleted users are rejected immediately.
type Authenticator struct {
	tokens  *TokenIssuer
	storage store.SyncStorage
	ca      *x509.Certificate
}

func NewAuthenticator(tokens *TokenIssuer, storage store.SyncStorage, ca *x509.Certificate) *Authenticator {
	return &Authenticator{tokens: tokens, storage: storage, ca: ca}
}

func (a *Authenticator) Tokens() *TokenIssuer {
	return a.tokens
}

func (a *Authenticator) Authenticate(ctx context.Context, token, apiKey string) (*Principal, error) {
	if err := a.CheckApiKey(apiKey); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	user, err := a.storage.GetUser(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if user.ClubID != claims.ClubID {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return &Principal{UserID: user.ID, ClubID: user.ClubID, Role: user.Role}, nil
}

// CheckApiKey verifies that apiKey is a base64 DER certificate issued by the
// configured CA. Without a CA every request passes.
func (a *Authenticator) CheckApiKey(apiKey string) error {
	if a.ca == nil {
		return nil
	}
	if apiKey == "" {
		return fmt.Errorf("%w: missing", ErrInvalidApiKey)
	}
	block, err := base64.StdEncoding.DecodeString(apiKey)
	if err != nil {
		return fmt.Errorf("%w: could not decode: %v", ErrInvalidApiKey, err)
	}

	cert, err := x509.ParseCertificate(block)
	if err != nil {
		return fmt.Errorf("%w: could not parse certificate: %v", ErrInvalidApiKey, err)
	}

	rootPool := x509.NewCertPool()
	rootPool.AddCert(a.ca)

	chains, err := cert.Verify(x509.VerifyOptions{
		Roots: rootPool,
	})
	if err != nil {
		return fmt.Errorf("%w: certificate verification error: %v", ErrInvalidApiKey, err)
	}
	if len(chains) != 1 || len(chains[0]) != 2 || !chains[0][0].Equal(cert) || !chains[0][1].Equal(a.ca) {
		return fmt.Errorf("%w: invalid chain of trust", ErrInvalidApiKey)
	}

	return nil
}

type Claims struct {
	Subject string     `json:"sub"`
	ClubID  string     `json:"club_id"`
	Role    store.Role `json:"role"`
	Expires int64      `json:"exp"`
}

// TokenIssuer signs access tokens with the server key. A token is the
// base64url JSON claims followed by a dot and the zbase32 compact signature
// of the claims.
type TokenIssuer struct {
	key *btcec.PrivateKey
	ttl time.Duration
	now func() time.Time
}

// NewTokenIssuer loads the hex encoded signing key, or generates one when
// hexKey is empty, in which case tokens do not survive a restart.
func NewTokenIssuer(hexKey string, ttl time.Duration) (*TokenIssuer, error) {
	var key *btcec.PrivateKey
	if hexKey == "" {
		k, err := btcec.NewPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		key = k
	} else {
		b, err := hex.DecodeString(hexKey)
		if err != nil || len(b) != 32 {
			return nil, fmt.Errorf("signing key must be 32 hex encoded bytes")
		}
		key, _ = btcec.PrivKeyFromBytes(b)
	}
	return &TokenIssuer{key: key, ttl: ttl, now: time.Now}, nil
}

func (i *TokenIssuer) Issue(user *store.User) (string, error) {
	claims := Claims{
		Subject: user.ID,
		ClubID:  user.ClubID,
		Role:    user.Role,
		Expires: i.now().Add(i.ttl).Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode claims: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	signature, err := SignMessage(i.key, []byte(encoded))
	if err != nil {
		return "", err
	}
	return encoded + "." + signature, nil
}

func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok {
		return nil, ErrInvalidToken
	}
	pubkey, err := VerifyMessage([]byte(encoded), signature)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !pubkey.IsEqual(i.key.PubKey()) {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if i.now().Unix() >= claims.Expires {
		return nil, ErrExpiredToken
	}
	return &claims, nil
}

func SignMessage(key *btcec.PrivateKey, msg []byte) (string, error) {
	message := append(append([]byte{}, SignedMsgPrefix...), msg...)
	digest := chainhash.DoubleHashB(message)
	signture, err := ecdsa.SignCompact(key, digest, true)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %v", err)
	}
	sig := zbase32.EncodeToString(signture)
	return sig, nil
}

func VerifyMessage(message []byte, signature string) (*btcec.PublicKey, error) {
	// The signature should be zbase32 encoded
	sig, err := zbase32.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature: %v", err)
	}

	msg := append(append([]byte{}, SignedMsgPrefix...), message...)
	first := sha256.Sum256(msg)
	second := sha256.Sum256(first[:])
	pubkey, wasCompressed, err := ecdsa.RecoverCompact(
		sig,
		second[:],
	)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	if !wasCompressed {
		return nil, ErrInvalidSignature
	}

	return pubkey, nil
}
