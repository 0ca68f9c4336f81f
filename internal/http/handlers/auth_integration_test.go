package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hongminglow/lms-be/internal/auth"
	"github.com/hongminglow/lms-be/internal/middleware"
	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/models/dto"
	"github.com/hongminglow/lms-be/internal/storage/postgres"
	"github.com/hongminglow/lms-be/internal/users"
)

type discardNotifier struct{}

func (discardNotifier) SendVerification(context.Context, string, string) error { return nil }
func (discardNotifier) SendPasswordReset(context.Context, string, string) error { return nil }

// TestAuthIntegration exercises register, login and /users/me against a live database.
func TestAuthIntegration(t *testing.T) {
	if os.Getenv("RUN_AUTH_INTEGRATION") != "true" {
		t.Skip("set RUN_AUTH_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := mustGetEnv(t, "DATABASE_URL")

	ctx := context.Background()
	store, err := postgres.NewUserStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	defer store.Close()

	tokens, err := auth.NewTokenManager(mustGetEnv(t, "JWT_SECRET"), "lms-integration", "HS256", auth.TokenTTLs{
		Access: 5 * time.Minute, Verification: time.Hour, Reset: time.Minute,
	})
	if err != nil {
		t.Fatalf("init tokens: %v", err)
	}
	hasher := auth.NewBcryptHasher(0)
	dir := users.NewDirectory(store, hasher)
	svc := auth.NewService(dir, tokens, hasher, discardNotifier{}, zerolog.Nop())

	r := chi.NewRouter()
	NewAuthHandler(svc).Register(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(auth.NewGate(tokens, dir)), middleware.RequireActive)
		NewUsersHandler(dir).Register(r)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	username := fmt.Sprintf("apitest_%d", time.Now().UnixNano())
	email := fmt.Sprintf("%s@example.com", username)
	password := fmt.Sprintf("Pass!%d", time.Now().UnixNano())

	user := requestRegister(t, ts.URL, map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if user.Username != username || user.Email != email || user.IsVerified {
		t.Fatalf("register mismatch: got %+v", user)
	}

	token := requestLogin(t, ts.URL, email, password)
	if strings.TrimSpace(token.AccessToken) == "" || token.TokenType != "bearer" {
		t.Fatalf("unexpected login response: %+v", token)
	}

	me := requestMe(t, ts.URL, token.AccessToken)
	if me.ID != user.ID {
		t.Fatalf("/users/me returned wrong user id: want %s got %s", user.ID, me.ID)
	}

	t.Logf("created user %s (id=%s) and resolved it via bearer token", username, user.ID)
}

func requestRegister(t *testing.T, baseURL string, payload map[string]string) models.User {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal register payload: %v", err)
	}
	resp, err := http.Post(baseURL+"/auth/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	var out models.User
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return out
}

func requestLogin(t *testing.T, baseURL, username, password string) dto.TokenResponse {
	t.Helper()
	resp, err := http.PostForm(baseURL+"/auth/login", url.Values{"username": {username}, "password": {password}})
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out dto.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out
}

func requestMe(t *testing.T, baseURL, token string) models.User {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, baseURL+"/users/me", nil)
	if err != nil {
		t.Fatalf("build me request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var out models.User
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode me response: %v", err)
	}
	return out
}

func mustGetEnv(t *testing.T, key string) string {
	t.Helper()
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		t.Fatalf("%s is required", key)
	}
	return val
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
