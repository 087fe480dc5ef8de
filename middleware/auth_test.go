package middleware

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/novaclub/club-sync/store"
	"github.com/novaclub/club-sync/store/sqlite"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestSignVerify(t *testing.T) {
	privateKey, err := btcec.NewPrivateKey()
	require.NoError(t, err, "failed to create private key")
	pubkey := privateKey.PubKey().SerializeCompressed()
	message := []byte("test message")
	signature, err := SignMessage(privateKey, message)
	require.NoError(t, err, "failed to sign message")
	recoveredKey, err := VerifyMessage(message, signature)
	require.NoError(t, err, "failed to verify message")
	require.Equal(t, recoveredKey.SerializeCompressed(), pubkey)
}

func testUser() *store.User {
	return &store.User{ID: uuid.NewString(), ClubID: uuid.NewString(), Role: store.RoleSecretary, IsActive: true}
}

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)
	user := testUser()

	token, err := issuer.Issue(user)
	require.NoError(t, err)
	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, user.ClubID, claims.ClubID)
	require.Equal(t, store.RoleSecretary, claims.Role)
}

func TestTokenFromConfiguredKey(t *testing.T) {
	key := "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"
	first, err := NewTokenIssuer(key, time.Hour)
	require.NoError(t, err)
	second, err := NewTokenIssuer(key, time.Hour)
	require.NoError(t, err)

	token, err := first.Issue(testUser())
	require.NoError(t, err)
	_, err = second.Verify(token)
	require.NoError(t, err, "tokens must survive a restart with the same key")

	_, err = NewTokenIssuer("abcd", time.Hour)
	require.Error(t, err)
}

func TestTokenRejected(t *testing.T) {
	issuer, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)
	other, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)
	token, err := other.Issue(testUser())
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = issuer.Verify("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	good, err := issuer.Issue(testUser())
	require.NoError(t, err)
	_, signature, _ := strings.Cut(good, ".")
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x","club_id":"y","role":"ADMIN","exp":99999999999}`))
	_, err = issuer.Verify(forged + "." + signature)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("", time.Minute)
	require.NoError(t, err)
	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestPassword(t *testing.T) {
	hashed, err := HashPassword("judo-rules")
	require.NoError(t, err)
	require.NotEqual(t, "judo-rules", hashed)
	require.True(t, CheckPassword(hashed, "judo-rules"))
	require.False(t, CheckPassword(hashed, "karate-rules"))
}

func newAuthenticator(t *testing.T) (*Authenticator, store.SyncStorage) {
	storage, err := sqlite.NewSQLiteSyncStorage("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })
	issuer, err := NewTokenIssuer("", time.Hour)
	require.NoError(t, err)
	return NewAuthenticator(issuer, storage, nil), storage
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	authenticator, storage := newAuthenticator(t)
	clubID := store.NewTestClub(t, storage)
	coach := &store.User{ClubID: clubID, Email: uuid.NewString() + "@example.com", HashedPassword: "h", Role: store.RoleCoach, IsActive: true}
	require.NoError(t, storage.CreateUser(ctx, coach))

	token, err := authenticator.Tokens().Issue(coach)
	require.NoError(t, err)
	principal, err := authenticator.Authenticate(ctx, token, "")
	require.NoError(t, err)
	require.Equal(t, &Principal{UserID: coach.ID, ClubID: clubID, Role: store.RoleCoach}, principal)
	require.False(t, principal.IsAdmin())

	_, err = authenticator.Authenticate(ctx, "", "")
	require.ErrorIs(t, err, ErrMissingToken)

	coach.IsActive = false
	require.NoError(t, storage.UpdateUser(ctx, coach))
	_, err = authenticator.Authenticate(ctx, token, "")
	require.ErrorIs(t, err, ErrInactiveUser)

	require.NoError(t, storage.DeleteUser(ctx, clubID, coach.ID))
	_, err = authenticator.Authenticate(ctx, token, "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthFunc(t *testing.T) {
	authenticator, storage := newAuthenticator(t)
	clubID := store.NewTestClub(t, storage)
	users, err := storage.ListUsers(context.Background(), clubID)
	require.NoError(t, err)
	token, err := authenticator.Tokens().Issue(&users[0])
	require.NoError(t, err)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	ctx, err = authenticator.AuthFunc(ctx)
	require.NoError(t, err)
	principal, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	require.Equal(t, clubID, principal.ClubID)
	require.True(t, principal.IsAdmin())

	_, err = authenticator.AuthFunc(context.Background())
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer nope.nope"))
	_, err = authenticator.AuthFunc(ctx)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func newCert(t *testing.T, template, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) (*x509.Certificate, *ecdsa.PrivateKey) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	if parent == nil {
		parent, parentKey = template, key
	}
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, parentKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, key
}

func TestCheckApiKey(t *testing.T) {
	now := time.Now()
	ca, caKey := newCert(t, &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "club-sync CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}, nil, nil)
	client, _ := newCert(t, &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "pwa"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}, ca, caKey)
	stranger, _ := newCert(t, &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject:      pkix.Name{CommonName: "stranger"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
	}, nil, nil)

	authenticator := NewAuthenticator(nil, nil, ca)
	require.NoError(t, authenticator.CheckApiKey(base64.StdEncoding.EncodeToString(client.Raw)))
	require.ErrorIs(t, authenticator.CheckApiKey(""), ErrInvalidApiKey)
	require.ErrorIs(t, authenticator.CheckApiKey("%%%"), ErrInvalidApiKey)
	require.ErrorIs(t, authenticator.CheckApiKey(base64.StdEncoding.EncodeToString(stranger.Raw)), ErrInvalidApiKey)

	require.NoError(t, NewAuthenticator(nil, nil, nil).CheckApiKey(""))
}
