// Package service 实现目录浏览、购物车和结算的业务编排，以及购物车会话令牌。
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/shopcart/internal/config"
)

// 会话令牌相关错误定义
var (
	ErrInvalidToken  = errors.New("invalid session token")
	ErrTokenExpired  = errors.New("session token expired")
	ErrTokenNotReady = errors.New("session token used before valid")
)

const sessionTokenType = "cart_session"

// SessionClaims 购物车会话令牌载荷。
// 令牌只标识匿名购物车会话，不携带任何用户身份。
type SessionClaims struct {
	SessionID string `json:"sid"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// SessionTokenService 定义会话令牌的签发与校验
type SessionTokenService interface {
	// NewSession 生成新的会话 ID 并签发令牌
	NewSession() (sessionID, token string, err error)
	Issue(sessionID string) (string, error)
	Validate(token string) (*SessionClaims, error)
	// NeedsRenewal 已过半有效期的令牌需要续签
	NeedsRenewal(claims *SessionClaims) bool
}

type sessionTokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionTokenService 创建会话令牌服务
func NewSessionTokenService(cfg *config.Config, logger *zap.Logger) SessionTokenService {
	return &sessionTokenService{
		secret: []byte(cfg.Session.Secret),
		ttl:    cfg.Session.TokenTTL,
		issuer: cfg.App.Name,
		logger: logger,
		now:    time.Now,
	}
}

func (s *sessionTokenService) NewSession() (string, string, error) {
	sessionID := uuid.NewString()
	token, err := s.Issue(sessionID)
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

func (s *sessionTokenService) Issue(sessionID string) (string, error) {
	now := s.now()
	claims := &SessionClaims{
		SessionID: sessionID,
		Type:      sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		s.logger.Error("failed to sign session token", zap.Error(err))
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (s *sessionTokenService) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotReady
		}
		s.logger.Debug("session token validation failed", zap.Error(err))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Type != sessionTokenType || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *sessionTokenService) NeedsRenewal(claims *SessionClaims) bool {
	if claims == nil || claims.IssuedAt == nil {
		return true
	}
	return s.now().Sub(claims.IssuedAt.Time) > s.ttl/2
}
