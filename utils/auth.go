// utils/auth.go
package utils

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/middleware"
	"github.com/liforce/liforce_backend/models"
)

// HashPassword hashes a plaintext password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateTokenResponse represents the response for token validation
type ValidateTokenResponse struct {
	Valid     bool         `json:"valid"`
	User      *models.User `json:"user,omitempty"`
	Message   string       `json:"message,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}

// ValidateToken validates a JWT token and returns user information if valid.
// Used by the frontend to check session validity.
func ValidateToken(tokenString string, db *mongo.Client) (*ValidateTokenResponse, error) {
	if tokenString == "" {
		return &ValidateTokenResponse{
			Valid:   false,
			Message: "No token provided",
		}, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, &middleware.JwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(middleware.GetJWTSecret()), nil
	})

	if err != nil {
		return &ValidateTokenResponse{
			Valid:   false,
			Message: "Invalid token: " + err.Error(),
		}, nil
	}

	claims, ok := token.Claims.(*middleware.JwtCustomClaims)
	if !ok || !token.Valid {
		return &ValidateTokenResponse{
			Valid:   false,
			Message: "Token is not valid",
		}, nil
	}

	if middleware.IsTokenBlacklisted(tokenString) {
		return &ValidateTokenResponse{
			Valid:   false,
			Message: "Token has been invalidated",
		}, nil
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return &ValidateTokenResponse{
			Valid:   false,
			Message: "Invalid user ID in token",
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var user models.User
	err = config.GetCollection(db, "users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		return &ValidateTokenResponse{
			Valid:   false,
			Message: "User not found",
		}, nil
	}

	if user.AccountStatus == models.AccountBlocked {
		return &ValidateTokenResponse{
			Valid:   false,
			Message: "Account is blocked",
		}, nil
	}

	resp := &ValidateTokenResponse{
		Valid: true,
		User:  &user,
	}
	if claims.ExpiresAt > 0 {
		expiresAt := time.Unix(claims.ExpiresAt, 0)
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// CurrentUser loads the authenticated user's document.
func CurrentUser(c echo.Context, db *mongo.Client) (*models.User, error) {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return nil, err
	}

	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, errors.New("invalid user ID")
	}

	var user models.User
	err = config.GetCollection(db, "users").FindOne(c.Request().Context(), bson.M{"_id": objID}).Decode(&user)
	if err != nil {
		return nil, errors.New("user not found")
	}
	return &user, nil
}
