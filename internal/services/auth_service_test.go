package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hypernova-labs/invoice-service/internal/config"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(users UserStore) *AuthService {
	svc := NewAuthService(users, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}, quietLogger())
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func TestSignupAndLogin(t *testing.T) {
	svc := newAuthService(newMemUsers())
	ctx := context.Background()

	signed, err := svc.Signup(ctx, &models.SignupRequest{Name: "Ada", Email: "Ada@Example.com", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, signed.Token)
	assert.Equal(t, "ada@example.com", signed.User.Email)
	assert.Equal(t, "Ada", signed.User.Name)

	logged, err := svc.Login(ctx, &models.LoginRequest{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, signed.User.ID, logged.User.ID)

	principal, err := svc.ParseToken(logged.Token)
	require.NoError(t, err)
	assert.Equal(t, signed.User.ID, principal.OwnerID)
	assert.Equal(t, "ada@example.com", principal.Email)
}

func TestSignupErrors(t *testing.T) {
	svc := newAuthService(newMemUsers())
	ctx := context.Background()

	_, err := svc.Signup(ctx, &models.SignupRequest{Email: "", Password: "pw"})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = svc.Signup(ctx, &models.SignupRequest{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, &models.SignupRequest{Email: "a@b.c", Password: "other"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc := newAuthService(newMemUsers())
	ctx := context.Background()

	_, err := svc.Signup(ctx, &models.SignupRequest{Email: "a@b.c", Password: "right"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "a@b.c", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "nobody@b.c", Password: "right"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseTokenRejects(t *testing.T) {
	svc := newAuthService(newMemUsers())
	resp, err := svc.Signup(context.Background(), &models.SignupRequest{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	other := newAuthService(newMemUsers())
	other.secret = []byte("different")
	_, err = other.ParseToken(resp.Token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ParseToken(resp.Token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: resp.User.ID.String()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = newAuthService(newMemUsers()).ParseToken(none)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.ParseToken("garbage")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
