package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type ServiceAPI interface {
	IssueToken(identity access.RequesterIdentity) (AuthTokens, error)
	Authenticate(tokenString string) (*access.Context, error)
}

// Service turns API tokens into access contexts under the current policy.
type Service struct {
	tokenGenerator TokenGenerator
	policy         *access.Policy
	logger         *slog.Logger
}

func NewService(tokenGen TokenGenerator, policy *access.Policy, logger *slog.Logger) *Service {
	return &Service{
		tokenGenerator: tokenGen,
		policy:         policy,
		logger:         logger,
	}
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(secret, issuer string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTTokenGenerator{
		Secret:         []byte(secret),
		Issuer:         issuer,
		AccessTokenTTL: ttl,
		now:            time.Now,
	}
}

// IssueToken signs a token for identity. The policy is not consulted here;
// access is evaluated on every request.
func (s *Service) IssueToken(identity access.RequesterIdentity) (AuthTokens, error) {
	if identity.IsZero() {
		return AuthTokens{}, internal.NewValidationFieldError("user_id", "identity is required", internal.ErrCodeValidationFailed)
	}

	token, expiresAt, err := s.tokenGenerator.GenerateAccessToken(identity.ID, identity.Username)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign token", err)
	}

	s.logger.Info("report api token issued", "requester", identity.String(), "expires_at", expiresAt)
	return AuthTokens{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Authenticate validates the token and evaluates the policy for its
// identity.
func (s *Service) Authenticate(tokenString string) (*access.Context, error) {
	claims, err := s.tokenGenerator.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	identity := access.RequesterIdentity{ID: claims.UserID, Username: claims.Username}
	if identity.IsZero() {
		return nil, internal.ErrInvalidToken
	}
	return access.Evaluate(identity, s.policy), nil
}

// GenerateAccessToken creates a new access token
func (j *JWTTokenGenerator) GenerateAccessToken(userID, username string) (string, time.Time, error) {
	now := j.clock()
	expiresAt := now.Add(j.AccessTokenTTL)

	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.Issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(j.clock)}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken.Wrap(err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, internal.ErrInvalidToken
}

func (j *JWTTokenGenerator) clock() time.Time {
	if j.now == nil {
		return time.Now()
	}
	return j.now()
}

// HashAPIKey creates a bcrypt hash for a webhook API key.
func HashAPIKey(key string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
