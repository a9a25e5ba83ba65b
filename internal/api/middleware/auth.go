// auth.go — опциональная JWT-аутентификация путей /upload/*.
//
// Токены валидируются по RS256 против JWKS endpoint (UM_JWKS_URL).
// Claim sub становится correlation id сессии загрузки: координатор
// записывает его в сессию, связывая загрузку с логической
// пользовательской сессией. При заданном UM_JWT_REQUIRED_SCOPE токен
// дополнительно обязан нести этот scope, иначе 403.
//
// Служебные пути (health, info, metrics, /ws/uploads) аутентификацию
// не проходят; при пустом UM_JWKS_URL модуль работает открыто и
// единственным ключом доступа к сессии остаётся upload_id.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/govideolab/upload-module/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyCorrelationID — ключ correlation id (sub из JWT)
	// в контексте запроса.
	ContextKeyCorrelationID contextKey = "upload_correlation_id"
	// ContextKeyScopes — ключ списка scope из JWT в контексте запроса.
	ContextKeyScopes contextKey = "upload_scopes"
)

// Claims — JWT claims, которые читает Upload Module.
// Scope принимается в двух формах:
//   - "scope" — пробело-разделённая строка (Keycloak, стандартный OAuth2)
//   - "scopes" — массив строк
type Claims struct {
	jwt.RegisteredClaims
	ScopeString string   `json:"scope"`
	ScopeArray  []string `json:"scopes"`
}

// Scopes возвращает объединённый список scope из обеих форм claim'а.
func (c *Claims) Scopes() []string {
	var out []string
	if c.ScopeString != "" {
		out = append(out, strings.Split(c.ScopeString, " ")...)
	}
	return append(out, c.ScopeArray...)
}

// HasScope проверяет наличие scope в любой из форм claim'а.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// JWTAuth — middleware JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks          keyfunc.Keyfunc
	requiredScope string
	jwtLeeway     time.Duration
	logger        *slog.Logger
}

// JWTAuthConfig — параметры создания JWT middleware.
type JWTAuthConfig struct {
	// URL JWKS endpoint
	JWKSURL string
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	CACertPath string
	// Пропускать проверку TLS-сертификатов
	TLSSkipVerify bool
	// Scope, обязательный для доступа к /upload/* (пусто — не проверяется)
	RequiredScope string
	// Таймаут HTTP-клиента JWKS
	ClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	RefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с ключами из JWKS endpoint.
func NewJWTAuth(authCfg JWTAuthConfig, logger *slog.Logger) (*JWTAuth, error) {
	httpClient, err := buildHTTPClient(authCfg)
	if err != nil {
		return nil, err
	}

	if authCfg.CACertPath != "" {
		logger.Info("CA-сертификат добавлен в пул доверия",
			slog.String("ca_cert", authCfg.CACertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq позволяет стартовать, когда JWKS endpoint
	// ещё недоступен (одновременный запуск pod-ов); ключи подтянутся
	// фоновым обновлением.
	storage, err := jwkset.NewStorageFromHTTP(authCfg.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           authCfg.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", authCfg.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:          k,
		requiredScope: authCfg.RequiredScope,
		jwtLeeway:     authCfg.JWTLeeway,
		logger:        logger.With(slog.String("component", "jwt_auth")),
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с готовой keyfunc.
// Используется в тестах для подстановки локального набора ключей.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, requiredScope string, jwtLeeway time.Duration, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:          kf,
		requiredScope: requiredScope,
		jwtLeeway:     jwtLeeway,
		logger:        logger.With(slog.String("component", "jwt_auth")),
	}
}

// buildHTTPClient создаёт HTTP-клиент JWKS с настроенным TLS и таймаутом.
func buildHTTPClient(authCfg JWTAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: authCfg.TLSSkipVerify, //nolint:gosec // настраивается через UM_TLS_SKIP_VERIFY
	}

	if authCfg.CACertPath != "" {
		caCert, err := os.ReadFile(authCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", authCfg.CACertPath, err)
		}

		caCertPool, err := x509.SystemCertPool()
		if err != nil {
			caCertPool = x509.NewCertPool()
		}
		caCertPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caCertPool
	}

	return &http.Client{
		Timeout: authCfg.ClientTimeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

// Middleware возвращает HTTP middleware аутентификации загрузок.
//
// Порядок проверок:
//  1. Bearer token в заголовке Authorization
//  2. Подпись RS256, exp/nbf с учётом leeway
//  3. Непустой sub
//  4. Обязательный scope (если настроен)
//
// После успешной проверки sub кладётся в контекст как correlation id
// сессии, scope'ы — списком.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}
			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// 2. Валидируем подпись и временные claim'ы
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, j.jwks.KeyfuncCtx(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.jwtLeeway),
			)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			// 3. sub обязателен: без него сессию не к чему привязать
			subject, err := claims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			// 4. Обязательный scope
			if j.requiredScope != "" && !claims.HasScope(j.requiredScope) {
				apierrors.Forbidden(w, "Недостаточно прав: требуется scope "+j.requiredScope)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyCorrelationID, subject)
			ctx = context.WithValue(ctx, ContextKeyScopes, claims.Scopes())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CorrelationIDFromContext извлекает correlation id (sub из JWT)
// из контекста запроса. Пустая строка — запрос без аутентификации.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyCorrelationID).(string)
	return id
}

// ScopesFromContext извлекает scope'ы из контекста запроса.
// nil — запрос без аутентификации.
func ScopesFromContext(ctx context.Context) []string {
	scopes, _ := ctx.Value(ContextKeyScopes).([]string)
	return scopes
}
