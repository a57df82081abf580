package stubserver

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-ledger-client/internal/model"
)

// authService issues and validates the HS256 token pairs the client consumes.
// Logout revokes every refresh token the user holds.
type authService struct {
	users      *userStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu            sync.Mutex
	refreshTokens map[string]int // token -> owning user ID
}

type authClaims struct {
	UserID   int
	Username string
	Role     string
	Type     string
}

func newAuthService(users *userStore, jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration) *authService {
	return &authService{
		users:         users,
		jwtSecret:     []byte(jwtSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		refreshTokens: map[string]int{},
	}
}

func (s *authService) login(username string, password string) (model.LoginResponse, error) {
	user, exists := s.users.byName(username)
	if !exists {
		return model.LoginResponse{}, errInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.LoginResponse{}, errInvalidCredentials
	}

	s.users.touchLogin(user.ID)
	user, _ = s.users.get(user.ID)

	access, err := s.signToken(user, "access", s.accessTTL)
	if err != nil {
		return model.LoginResponse{}, err
	}
	refresh, err := s.signToken(user, "refresh", s.refreshTTL)
	if err != nil {
		return model.LoginResponse{}, err
	}

	s.mu.Lock()
	s.refreshTokens[refresh] = user.ID
	s.mu.Unlock()

	return model.LoginResponse{AccessToken: access, RefreshToken: refresh, User: user.public()}, nil
}

// refresh trades a known refresh token for a fresh access token. The refresh
// token itself stays valid until logout or expiry; clients hold it for the
// lifetime of the session.
func (s *authService) refresh(refreshToken string) (model.RefreshResponse, error) {
	claims, err := s.validateToken(refreshToken, "refresh")
	if err != nil {
		return model.RefreshResponse{}, errInvalidToken
	}

	s.mu.Lock()
	ownerID, known := s.refreshTokens[refreshToken]
	s.mu.Unlock()

	if !known || ownerID != claims.UserID {
		return model.RefreshResponse{}, errInvalidToken
	}

	user, exists := s.users.get(claims.UserID)
	if !exists {
		return model.RefreshResponse{}, errInvalidToken
	}

	access, err := s.signToken(user, "access", s.accessTTL)
	if err != nil {
		return model.RefreshResponse{}, err
	}

	return model.RefreshResponse{AccessToken: access}, nil
}

func (s *authService) logout(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, owner := range s.refreshTokens {
		if owner == userID {
			delete(s.refreshTokens, token)
		}
	}
}

func (s *authService) changePassword(userID int, currentPassword string, newPassword string) error {
	user, exists := s.users.get(userID)
	if !exists {
		return errInvalidToken
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return errWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), 12)
	if err != nil {
		return err
	}

	return s.users.setPassword(userID, string(hash))
}

func (s *authService) validateToken(tokenString string, expectedType string) (*authClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errInvalidToken
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, errInvalidToken
	}

	sub, _ := claimsMap["sub"].(string)
	userID, err := strconv.Atoi(sub)
	if err != nil || userID <= 0 {
		return nil, errInvalidToken
	}

	claims := &authClaims{UserID: userID, Type: typ}
	claims.Username, _ = claimsMap["username"].(string)
	claims.Role, _ = claimsMap["role"].(string)

	return claims, nil
}

func (s *authService) signToken(user storedUser, typ string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      strconv.Itoa(user.ID),
		"username": user.Username,
		"role":     user.RoleName,
		"typ":      typ,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})

	return token.SignedString(s.jwtSecret)
}
