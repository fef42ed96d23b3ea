package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clinicflow/drafthub/internal/handler/middleware"
)

var ErrNoUser = errors.New("authenticated user not found in context")

// getUserIDFromContext returns the user resolved by middleware.JWTAuth.
func getUserIDFromContext(c *gin.Context) (uuid.UUID, error) {
	v, exists := c.Get(middleware.ContextKeyUserID)
	if !exists {
		return uuid.Nil, ErrNoUser
	}
	userID, ok := v.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, ErrNoUser
	}
	return userID, nil
}
