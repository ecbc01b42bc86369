package main

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenExpiry = 24 * time.Hour
	maxNameLen  = 16
)

// Auth hands out player identities and signed resume tokens. Identities
// are ephemeral (no accounts, nothing persisted); the token only lets a
// reconnecting client reclaim its player id within the expiry window.
type Auth struct {
	jwtSecret []byte
}

// NewAuth creates an Auth with a fresh random signing secret
func NewAuth() *Auth {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate token secret: " + err.Error())
	}
	return &Auth{jwtSecret: secret}
}

// RegisterGuest assigns a new player id and a resume token. An empty name
// gets the default Player_xxxx form.
func (a *Auth) RegisterGuest(name string) (string, string, string, error) {
	playerID := uuid.New().String()

	name = strings.TrimSpace(name)
	if name == "" {
		name = "Player_" + playerID[:4]
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	token, err := a.generateToken(playerID, name)
	if err != nil {
		return "", "", "", err
	}
	return playerID, name, token, nil
}

// ValidateToken checks a resume token and returns (playerID, name)
func (a *Auth) ValidateToken(tokenStr string) (string, string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}

	playerID, ok := claims["pid"].(string)
	if !ok {
		return "", "", fmt.Errorf("invalid token claims")
	}
	name, ok := claims["name"].(string)
	if !ok {
		return "", "", fmt.Errorf("invalid token claims")
	}
	return playerID, name, nil
}

func (a *Auth) generateToken(playerID, name string) (string, error) {
	claims := jwt.MapClaims{
		"pid":  playerID,
		"name": name,
		"exp":  time.Now().Add(tokenExpiry).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}
