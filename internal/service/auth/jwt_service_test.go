package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskflow/taskflow-api/internal/config"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func newTestJWTService(secret string, now func() time.Time) *hmacJWTService {
	return &hmacJWTService{
		signingKey:    []byte(secret),
		tokenLifetime: time.Hour,
		timeFunc:      now,
		clockSkew:     2 * time.Minute,
	}
}

// signRaw signs arbitrary claims, for tokens the service would never mint.
func signRaw(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestNewJWTService(t *testing.T) {
	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
	assert.Error(t, err)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestJWTService(testSecret, func() time.Time { return fixedTime })
	ctx := context.Background()

	t.Run("user token", func(t *testing.T) {
		userID := uuid.New()
		token, err := svc.GenerateToken(ctx, userID, RoleAuthenticated)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, userID, claims.UserID)
		assert.Equal(t, userID.String(), claims.Subject)
		assert.Equal(t, RoleAuthenticated, claims.Role)
		assert.False(t, claims.IsServiceRole())
		assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
		assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("service token without subject", func(t *testing.T) {
		token, err := svc.GenerateToken(ctx, uuid.Nil, RoleServiceRole)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.True(t, claims.IsServiceRole())
		assert.Equal(t, uuid.Nil, claims.UserID)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := svc.GenerateToken(ctx, uuid.New(), "admin")
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("user token needs subject", func(t *testing.T) {
		_, err := svc.GenerateToken(ctx, uuid.Nil, RoleAuthenticated)
		assert.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()
	future := jwt.NewNumericDate(fixedTime.Add(time.Hour))

	tests := []struct {
		name      string
		setupFunc func(t *testing.T) (JWTService, string)
		wantErr   error
	}{
		{
			name: "expired token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestJWTService(testSecret, func() time.Time { return fixedTime })
				token, err := gen.GenerateToken(context.Background(), userID, RoleAuthenticated)
				require.NoError(t, err)

				return newTestJWTService(testSecret, func() time.Time {
					return fixedTime.Add(2 * time.Hour)
				}), token
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "invalid signature",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestJWTService(testSecret, func() time.Time { return fixedTime })
				token, err := gen.GenerateToken(context.Background(), userID, RoleAuthenticated)
				require.NoError(t, err)

				return newTestJWTService("wrong-secret-that-is-long-enough-for-testing", func() time.Time {
					return fixedTime
				}), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "malformed token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				return newTestJWTService(testSecret, func() time.Time { return fixedTime }), "this.is.not.a.valid.jwt.token"
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "not yet valid",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := signRaw(t, jwtCustomClaims{
					Role: RoleAuthenticated,
					RegisteredClaims: jwt.RegisteredClaims{
						Subject:   userID.String(),
						NotBefore: jwt.NewNumericDate(fixedTime.Add(30 * time.Minute)),
						ExpiresAt: future,
					},
				})
				return newTestJWTService(testSecret, func() time.Time { return fixedTime }), token
			},
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "missing expiry",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := signRaw(t, jwtCustomClaims{
					Role:             RoleServiceRole,
					RegisteredClaims: jwt.RegisteredClaims{},
				})
				return newTestJWTService(testSecret, func() time.Time { return fixedTime }), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "unknown role",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := signRaw(t, jwtCustomClaims{
					Role:             "anon",
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future},
				})
				return newTestJWTService(testSecret, func() time.Time { return fixedTime }), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "user token with non-uuid subject",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := signRaw(t, jwtCustomClaims{
					Role:             RoleAuthenticated,
					RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: future},
				})
				return newTestJWTService(testSecret, func() time.Time { return fixedTime }), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "user token without subject",
			setupFunc: func(t *testing.T) (JWTService, string) {
				token := signRaw(t, jwtCustomClaims{
					Role:             RoleAuthenticated,
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future},
				})
				return newTestJWTService(testSecret, func() time.Time { return fixedTime }), token
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, token := tt.setupFunc(t)
			claims, err := svc.ValidateToken(context.Background(), token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, claims)
		})
	}
}
