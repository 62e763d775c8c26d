package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims представляет полезную нагрузку bearer-токена, выданного внешним
// провайдером учетных записей. Идентификатор пользователя приходит либо в
// user_id, либо в стандартном subject.
type Claims struct {
	UserID               uuid.UUID `json:"user_id"`
	Email                string    `json:"email,omitempty"`
	jwt.RegisteredClaims           // Встраиваем стандартные поля: ExpiresAt, Subject, IssuedAt и т.д.
}
