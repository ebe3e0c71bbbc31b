package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"formafit/trainer-app/internal/domain"

	"github.com/golang-jwt/jwt/v4"
)

func TestRegisterAndLogin(t *testing.T) {
	users := newFakeUsers()
	svc := NewAuthService(users, "test-secret", time.Hour, []string{"Boss@Example.com"})
	ctx := context.Background()

	coach, err := svc.Register(ctx, "Coach", "coach@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if coach.Role != domain.RoleTrainer || coach.PasswordHash != "" {
		t.Errorf("coach = %+v", coach)
	}
	boss, err := svc.Register(ctx, "Boss", "boss@example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if !boss.IsAdmin() {
		t.Error("listed email should get the admin role")
	}

	if _, err := svc.Register(ctx, "Again", "COACH@example.com", "password123"); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("duplicate: %v", err)
	}
	if _, err := svc.Register(ctx, "Short", "short@example.com", "123"); !errors.Is(err, ErrValidation) {
		t.Errorf("short password: %v", err)
	}

	token, user, err := svc.Login(ctx, "Coach@Example.com", "password123")
	if err != nil {
		t.Fatal(err)
	}
	if user.ID != coach.ID {
		t.Errorf("logged in as %s", user.ID.Hex())
	}
	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(svc.GetJWTSecret()), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.UserID != coach.ID.Hex() || claims.Role != domain.RoleTrainer {
		t.Errorf("claims = %+v", claims)
	}

	if _, _, err := svc.Login(ctx, "coach@example.com", "wrong-password"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("wrong password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ghost@example.com", "password123"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("unknown user: %v", err)
	}
}
