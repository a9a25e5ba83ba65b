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
)

const testKeyID = "um-signing-key"

// newSigningKey генерирует RSA-ключ подписи токенов.
func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("ошибка генерации RSA ключа: %v", err)
	}
	return key
}

// signToken подписывает claims ключом key (RS256, kid=testKeyID).
func signToken(t *testing.T, key *rsa.PrivateKey, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("ошибка подписи токена: %v", err)
	}
	return signed
}

// uploadClaims возвращает валидные claims пользователя сервиса загрузок.
func uploadClaims(sub string, scope string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		ScopeString: scope,
	}
}

// newTestAuth собирает JWTAuth с локальным JWKS из публичного ключа.
func newTestAuth(t *testing.T, key *rsa.PrivateKey, requiredScope string) *JWTAuth {
	t.Helper()

	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}
	jwksJSON, err := json.Marshal(jwks)
	if err != nil {
		t.Fatalf("ошибка сериализации JWKS: %v", err)
	}

	kf, err := keyfunc.NewJWKSetJSON(jwksJSON)
	if err != nil {
		t.Fatalf("ошибка создания keyfunc: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewJWTAuthWithKeyfunc(kf, requiredScope, 30*time.Second, logger)
}

// doAuth прогоняет запрос с заголовком Authorization через middleware
// и возвращает рекордер плюс контекст, дошедший до handler'а (nil —
// handler не вызывался).
func doAuth(t *testing.T, auth *JWTAuth, authHeader string) (*httptest.ResponseRecorder, context.Context) {
	t.Helper()

	var seen context.Context
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context()
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/upload/init", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

// TestJWTAuth_SubBecomesCorrelationID проверяет основной контракт
// middleware: sub валидного токена доступен handler'у как correlation id,
// scope'ы — списком.
func TestJWTAuth_SubBecomesCorrelationID(t *testing.T) {
	key := newSigningKey(t)
	auth := newTestAuth(t, key, "")

	token := signToken(t, key, uploadClaims("user-42", "openid upload:write"))
	rec, ctx := doAuth(t, auth, "Bearer "+token)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус %d, ожидался 200, тело: %s", rec.Code, rec.Body.String())
	}
	if ctx == nil {
		t.Fatal("handler не был вызван")
	}
	if got := CorrelationIDFromContext(ctx); got != "user-42" {
		t.Errorf("correlation id = %q, ожидалось user-42", got)
	}
	scopes := ScopesFromContext(ctx)
	if len(scopes) != 2 || scopes[0] != "openid" || scopes[1] != "upload:write" {
		t.Errorf("scopes = %v, ожидалось [openid upload:write]", scopes)
	}
}

// TestJWTAuth_RequiredScope проверяет обязательный scope:
// токен без него получает 403, с ним — проходит.
func TestJWTAuth_RequiredScope(t *testing.T) {
	key := newSigningKey(t)
	auth := newTestAuth(t, key, "upload:write")

	withoutScope := signToken(t, key, uploadClaims("user-42", "openid"))
	rec, _ := doAuth(t, auth, "Bearer "+withoutScope)
	if rec.Code != http.StatusForbidden {
		t.Errorf("токен без scope: статус %d, ожидался 403", rec.Code)
	}

	withScope := signToken(t, key, uploadClaims("user-42", "openid upload:write"))
	rec, ctx := doAuth(t, auth, "Bearer "+withScope)
	if rec.Code != http.StatusOK {
		t.Errorf("токен со scope: статус %d, ожидался 200", rec.Code)
	}
	if ctx == nil || CorrelationIDFromContext(ctx) != "user-42" {
		t.Error("correlation id не дошёл до handler'а")
	}
}

// TestJWTAuth_Rejected проверяет отказы аутентификации: каждый кейс
// получает 401 и не доходит до handler'а.
func TestJWTAuth_Rejected(t *testing.T) {
	key := newSigningKey(t)
	auth := newTestAuth(t, key, "")

	expired := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-3 * time.Hour)),
		},
	}
	noSub := uploadClaims("", "upload:write")

	foreignKey := newSigningKey(t)

	// HS256 с произвольным секретом: метод подписи вне allow-list
	hsToken := jwt.NewWithClaims(jwt.SigningMethodHS256, uploadClaims("user-42", ""))
	hsToken.Header["kid"] = testKeyID
	hsSigned, err := hsToken.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("ошибка подписи HS256 токена: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"без заголовка", ""},
		{"basic вместо bearer", "Basic dXNlcjpwYXNz"},
		{"без схемы", "token123"},
		{"пустой bearer", "Bearer "},
		{"мусор вместо токена", "Bearer not.a.jwt"},
		{"просроченный токен", "Bearer " + signToken(t, key, expired)},
		{"без sub", "Bearer " + signToken(t, key, noSub)},
		{"чужой ключ подписи", "Bearer " + signToken(t, foreignKey, uploadClaims("user-42", ""))},
		{"алгоритм HS256", "Bearer " + hsSigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ctx := doAuth(t, auth, tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("статус %d, ожидался 401", rec.Code)
			}
			if ctx != nil {
				t.Error("handler не должен быть вызван")
			}
		})
	}
}

// TestClaims_Scopes проверяет слияние двух форм scope claim'а.
func TestClaims_Scopes(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   []string
	}{
		{"строка", Claims{ScopeString: "openid upload:write"}, []string{"openid", "upload:write"}},
		{"массив", Claims{ScopeArray: []string{"upload:write"}}, []string{"upload:write"}},
		{"обе формы", Claims{ScopeString: "openid", ScopeArray: []string{"upload:write"}}, []string{"openid", "upload:write"}},
		{"пусто", Claims{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.claims.Scopes()
			if len(got) != len(tt.want) {
				t.Fatalf("Scopes() = %v, ожидалось %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Scopes()[%d] = %q, ожидалось %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	c := Claims{ScopeString: "openid upload:write"}
	if !c.HasScope("upload:write") {
		t.Error("HasScope(upload:write) = false, ожидалось true")
	}
	if c.HasScope("admin") {
		t.Error("HasScope(admin) = true, ожидалось false")
	}
}

// TestCorrelationIDFromContext проверяет поведение без аутентификации.
func TestCorrelationIDFromContext_Empty(t *testing.T) {
	if id := CorrelationIDFromContext(context.Background()); id != "" {
		t.Errorf("ожидалась пустая строка, получено %q", id)
	}
	if scopes := ScopesFromContext(context.Background()); scopes != nil {
		t.Errorf("ожидался nil, получено %v", scopes)
	}
}
