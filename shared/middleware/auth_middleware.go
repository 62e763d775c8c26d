package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"imitate-server/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ключи контекста Gin, под которыми middleware сохраняет данные пользователя.
const (
	ContextUserIDKey = "userID"
	ContextTokenKey  = "bearerToken"
)

// TokenVerifier определяет функцию, которая проверяет строку токена и возвращает claims.
// Ошибки могут быть models.ErrTokenInvalid, models.ErrTokenExpired, models.ErrTokenMalformed и т.д.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// AuthMiddleware создает Gin middleware для проверки bearer-токена.
// Исходный токен тоже кладется в контекст: session-service передает его
// дальше в oracle API как есть.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Missing token"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			log.Warn("Malformed Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Malformed token header"})
			return
		}
		tokenString := parts[1]

		claims, err := verifier(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "Invalid token"
			if errors.Is(err, models.ErrTokenExpired) {
				msg = "Token expired"
			} else if !errors.Is(err, models.ErrTokenMalformed) && !errors.Is(err, models.ErrTokenInvalid) {
				log.Error("Unexpected token verification error", zap.Error(err))
				status = http.StatusInternalServerError
				msg = "Internal server error during token verification"
			}
			c.AbortWithStatusJSON(status, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: msg})
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextTokenKey, tokenString)

		log.Debug("User authorized", zap.String("userID", claims.UserID.String()))
		c.Next()
	}
}
