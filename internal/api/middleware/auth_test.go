package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/ownership"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key-am"

// testIssuer — issuer тестового realm.
const testIssuer = "https://keycloak.test/realms/anketa"

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	nB64 := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   nB64,
				"e":   eB64,
			},
		},
	}

	data, _ := json.Marshal(jwks)
	return data
}

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestJWTAuth создаёт JWTAuth для тестов с mock JWKS.
func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	jwksJSON := buildJWKSetJSON(&key.PublicKey, testKeyID)
	kf, err := keyfunc.NewJWKSetJSON(jwksJSON)
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}

	return NewJWTAuthWithKeyfunc(
		kf,
		testIssuer,
		"realm_access.roles",
		"telegram_id",
		[]string{"admin", "anketa-admin"},
		testLogger(),
	)
}

// generateToken генерирует JWT с указанными дополнительными claims.
func generateToken(t *testing.T, key *rsa.PrivateKey, sub string, extra jwt.MapClaims, expired bool) string {
	t.Helper()

	exp := time.Now().Add(time.Hour)
	if expired {
		exp = time.Now().Add(-time.Hour)
	}

	claims := jwt.MapClaims{
		"sub": sub,
		"iss": testIssuer,
		"exp": jwt.NewNumericDate(exp),
		"nbf": jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		"iat": jwt.NewNumericDate(time.Now()),
	}
	for k, v := range extra {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return tokenStr
}

// --- Тесты JWT Middleware ---

// TestJWTAuth_ValidToken — валидный JWT: claims и Caller в контексте.
func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("claims не найдены в контексте")
		}
		if claims.Subject != "user-123" {
			t.Errorf("ожидался sub=user-123, получен %s", claims.Subject)
		}
		if claims.PreferredUsername != "ivanov" {
			t.Errorf("ожидался username=ivanov, получен %s", claims.PreferredUsername)
		}
		if claims.TelegramID != "987654321" {
			t.Errorf("ожидался telegram_id=987654321, получен %s", claims.TelegramID)
		}
		if claims.IsAdmin {
			t.Error("роль admin не ожидалась")
		}

		caller := CallerFromContext(r.Context())
		if caller == nil {
			t.Fatal("caller не найден в контексте")
		}
		if caller.UserID != "user-123" {
			t.Errorf("ожидался UserID=user-123, получен %s", caller.UserID)
		}
		if caller.ExternalID != "987654321" {
			t.Errorf("ожидался ExternalID=987654321, получен %s", caller.ExternalID)
		}

		w.WriteHeader(http.StatusOK)
	}))

	tokenStr := generateToken(t, key, "user-123", jwt.MapClaims{
		"preferred_username": "ivanov",
		"email":              "ivanov@test.com",
		"telegram_id":        "987654321",
		"realm_access":       map[string]any{"roles": []string{"default-roles-anketa"}},
	}, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestJWTAuth_AnonymousPassThrough — запрос без Authorization идёт дальше
// без идентичности.
func TestJWTAuth_AnonymousPassThrough(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	called := false
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if caller := CallerFromContext(r.Context()); caller != nil {
			t.Errorf("ожидался анонимный запрос, получен caller %+v", caller)
		}
		if claims := ClaimsFromContext(r.Context()); claims != nil {
			t.Errorf("claims не ожидались, получено %+v", claims)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("handler должен быть вызван для анонимного запроса")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestJWTAuth_ExpiredToken — просроченный токен: 401, не анонимный проход.
func TestJWTAuth_ExpiredToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	tokenStr := generateToken(t, key, "user-123", nil, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_InvalidFormat — некорректный формат Authorization.
func TestJWTAuth_InvalidFormat(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"no bearer prefix", "token123"},
		{"empty bearer", "Bearer "},
		{"мусор вместо токена", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

// TestJWTAuth_WrongIssuer — токен с неверным issuer.
func TestJWTAuth_WrongIssuer(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	exp := time.Now().Add(time.Hour)
	claims := jwt.MapClaims{
		"sub": "user-123",
		"iss": "https://other-keycloak.test/realms/other",
		"exp": jwt.NewNumericDate(exp),
		"nbf": jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		"iat": jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_NumericTelegramID — Telegram ID числом приводится к строке.
func TestJWTAuth_NumericTelegramID(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := CallerFromContext(r.Context())
		if caller == nil {
			t.Fatal("caller не найден")
		}
		if caller.ExternalID != "123456789" {
			t.Errorf("ожидался ExternalID=123456789, получен %q", caller.ExternalID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tokenStr := generateToken(t, key, "user-123", jwt.MapClaims{
		"telegram_id": 123456789,
	}, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestJWTAuth_AdminRoleMapping — определение роли администратора.
func TestJWTAuth_AdminRoleMapping(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		expected bool
	}{
		{"роль admin", []string{"admin"}, true},
		{"роль anketa-admin", []string{"anketa-admin"}, true},
		{"роль среди прочих", []string{"default-roles-anketa", "admin"}, true},
		{"без админской роли", []string{"default-roles-anketa", "offline_access"}, false},
		{"без ролей", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := generateTestKey(t)
			auth := newTestJWTAuth(t, key)

			handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				caller := CallerFromContext(r.Context())
				if caller == nil {
					t.Fatal("caller не найден")
				}
				if caller.IsAdmin != tt.expected {
					t.Errorf("ожидался IsAdmin=%v, получен %v", tt.expected, caller.IsAdmin)
				}
				w.WriteHeader(http.StatusOK)
			}))

			extra := jwt.MapClaims{}
			if tt.roles != nil {
				extra["realm_access"] = map[string]any{"roles": tt.roles}
			}
			tokenStr := generateToken(t, key, "user-123", extra, false)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
			req.Header.Set("Authorization", "Bearer "+tokenStr)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("ожидался статус 200, получен %d", rec.Code)
			}
		})
	}
}

// --- Тесты RequireAdmin ---

// TestRequireAdmin_Admin — администратор проходит.
func TestRequireAdmin_Admin(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	caller := &ownership.Caller{UserID: "user-123", IsAdmin: true}
	ctx := context.WithValue(context.Background(), ContextKeyCaller, caller)
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestRequireAdmin_NonAdmin — обычный пользователь получает 403.
func TestRequireAdmin_NonAdmin(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	caller := &ownership.Caller{UserID: "user-123"}
	ctx := context.WithValue(context.Background(), ContextKeyCaller, caller)
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("ожидался статус 403, получен %d", rec.Code)
	}
}

// TestRequireAdmin_Anonymous — анонимный запрос получает 401.
func TestRequireAdmin_Anonymous(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// --- Тесты context helpers ---

// TestClaimsFromContext_Empty — пустой контекст.
func TestClaimsFromContext_Empty(t *testing.T) {
	if claims := ClaimsFromContext(context.Background()); claims != nil {
		t.Errorf("ожидался nil, получено %+v", claims)
	}
}

// TestCallerFromContext_Empty — пустой контекст.
func TestCallerFromContext_Empty(t *testing.T) {
	if caller := CallerFromContext(context.Background()); caller != nil {
		t.Errorf("ожидался nil, получено %+v", caller)
	}
}

// TestSubjectFromContext — извлечение subject.
func TestSubjectFromContext(t *testing.T) {
	claims := &AuthClaims{Subject: "user-123"}
	ctx := context.WithValue(context.Background(), ContextKeyClaims, claims)

	if sub := SubjectFromContext(ctx); sub != "user-123" {
		t.Errorf("ожидался user-123, получен %q", sub)
	}
}

// --- Тесты извлечения claims ---

// TestClaimByPath — извлечение claim по пути через точку.
func TestClaimByPath(t *testing.T) {
	claims := jwt.MapClaims{
		"sub": "user-123",
		"realm_access": map[string]any{
			"roles": []any{"admin", "user"},
		},
	}

	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"верхний уровень", "sub", true},
		{"вложенный путь", "realm_access.roles", true},
		{"несуществующий claim", "resource_access.roles", false},
		{"путь через не-объект", "sub.roles", false},
		{"пустой путь", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := claimByPath(claims, tt.path)
			if (result != nil) != tt.ok {
				t.Errorf("claimByPath(%q) = %v, ожидалось наличие=%v", tt.path, result, tt.ok)
			}
		})
	}
}

// TestStringSliceClaim — извлечение массива строк.
func TestStringSliceClaim(t *testing.T) {
	claims := jwt.MapClaims{
		"realm_access": map[string]any{
			// JSON unmarshal даёт []any, не []string
			"roles": []any{"admin", "user", 42},
		},
	}

	roles := stringSliceClaim(claims, "realm_access.roles")
	if len(roles) != 2 || roles[0] != "admin" || roles[1] != "user" {
		t.Errorf("ожидалось [admin user], получено %v", roles)
	}
}

// TestAuthClaims_HasRole — проверка HasRole.
func TestAuthClaims_HasRole(t *testing.T) {
	claims := &AuthClaims{Roles: []string{"admin", "user"}}

	if !claims.HasRole("admin") {
		t.Error("ожидался HasRole(admin) = true")
	}
	if claims.HasRole("viewer") {
		t.Error("ожидался HasRole(viewer) = false")
	}
}
