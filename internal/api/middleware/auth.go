// auth.go — JWT middleware для аутентификации Admin Module.
// Извлекает claims из Keycloak JWT и формирует идентичность вызывающей
// стороны (ownership.Caller) для проверки владения анкетой.
//
// Запрос без заголовка Authorization пропускается дальше БЕЗ идентичности:
// пока прокидывание токена не развёрнуто на всех поверхностях системы,
// анонимные запросы допустимы и разрешаются пермиссивной моделью ownership.
// Невалидный или просроченный токен — всегда 401: предъявленный, но
// непроверяемый токен опаснее его отсутствия.
//
// Fallback-валидация подписи через JWKS Keycloak (основная — на API Gateway).
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/goanketa/admin-module/internal/api/errors"
	"github.com/bigkaa/goanketa/admin-module/internal/domain/ownership"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — полные извлечённые claims в контексте запроса.
	ContextKeyClaims contextKey = "jwt_claims"
	// ContextKeyCaller — идентичность вызывающей стороны в контексте запроса.
	ContextKeyCaller contextKey = "caller"
)

// Параметры JWKS-клиента. Менять через конфигурацию пока не требовалось.
const (
	jwksClientTimeout   = 10 * time.Second
	jwksRefreshInterval = time.Hour
	jwtLeeway           = 30 * time.Second
)

// AuthClaims — извлечённые и обработанные claims из Keycloak JWT.
// Помещаются в контекст запроса для downstream handlers.
type AuthClaims struct {
	// Subject — sub из JWT (Keycloak user ID).
	Subject string
	// PreferredUsername — preferred_username из JWT.
	PreferredUsername string
	// Email — email из JWT.
	Email string
	// TelegramID — идентификатор Telegram-пользователя из кастомного claim.
	TelegramID string
	// Roles — роли из claim ролей (обычно realm_access.roles).
	Roles []string
	// IsAdmin — хотя бы одна роль входит в список административных.
	IsAdmin bool
}

// HasRole проверяет наличие указанной роли.
func (c *AuthClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// JWTAuth — middleware для JWT-аутентификации через JWKS Keycloak.
type JWTAuth struct {
	jwks          keyfunc.Keyfunc
	logger        *slog.Logger
	issuer        string
	rolesClaim    string
	telegramClaim string
	adminRoles    []string
}

// NewJWTAuth создаёт JWT middleware с JWKS из Keycloak.
// jwksURL — URL к JWKS endpoint Keycloak.
// caCertPath — опциональный путь к CA-сертификату для TLS.
// issuer — ожидаемый issuer JWT (обычно https://keycloak/realms/anketa).
// rolesClaim — путь к claim ролей через точку (AM_JWT_ROLES_CLAIM).
// telegramClaim — имя claim с Telegram ID (AM_JWT_TELEGRAM_CLAIM).
// adminRoles — роли, дающие права администратора (AM_JWT_ADMIN_ROLES).
func NewJWTAuth(
	jwksURL string,
	caCertPath string,
	issuer string,
	rolesClaim string,
	telegramClaim string,
	adminRoles []string,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// HTTP-клиент для JWKS (с кастомным CA или стандартный)
	httpClient := http.DefaultClient
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:          k,
		logger:        logger.With(slog.String("component", "jwt_auth")),
		issuer:        issuer,
		rolesClaim:    rolesClaim,
		telegramClaim: telegramClaim,
		adminRoles:    adminRoles,
	}, nil
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
// timeout — таймаут HTTP-запросов.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	rolesClaim string,
	telegramClaim string,
	adminRoles []string,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		jwks:          kf,
		logger:        logger.With(slog.String("component", "jwt_auth")),
		issuer:        issuer,
		rolesClaim:    rolesClaim,
		telegramClaim: telegramClaim,
		adminRoles:    adminRoles,
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
// Без заголовка Authorization запрос идёт дальше анонимно (Caller
// в контекст не помещается). С заголовком — валидирует подпись (RS256),
// извлекает claims, формирует Caller и помещает всё в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Анонимный запрос — пропускаем без идентичности.
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// Парсинг и валидация JWT через JWKS.
			// MapClaims вместо типизированной структуры: имена claim ролей
			// и Telegram ID задаются конфигурацией.
			rawClaims := jwt.MapClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(jwtLeeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if !token.Valid {
				apierrors.Unauthorized(w, "Невалидный токен")
				return
			}

			subject, err := rawClaims.GetSubject()
			if err != nil || subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			authClaims := j.buildAuthClaims(subject, rawClaims)
			caller := &ownership.Caller{
				UserID:     authClaims.Subject,
				ExternalID: authClaims.TelegramID,
				IsAdmin:    authClaims.IsAdmin,
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, authClaims)
			ctx = context.WithValue(ctx, ContextKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildAuthClaims формирует AuthClaims из raw claims токена.
func (j *JWTAuth) buildAuthClaims(subject string, raw jwt.MapClaims) *AuthClaims {
	claims := &AuthClaims{
		Subject:           subject,
		PreferredUsername: stringClaim(raw, "preferred_username"),
		Email:             stringClaim(raw, "email"),
		TelegramID:        stringClaim(raw, j.telegramClaim),
		Roles:             stringSliceClaim(raw, j.rolesClaim),
	}

	for _, admin := range j.adminRoles {
		if claims.HasRole(admin) {
			claims.IsAdmin = true
			break
		}
	}

	return claims
}

// claimByPath извлекает значение claim по пути через точку
// (например "realm_access.roles"). Промежуточные сегменты должны быть
// JSON-объектами.
func claimByPath(claims jwt.MapClaims, path string) any {
	if path == "" {
		return nil
	}

	var current any = map[string]any(claims)
	for _, segment := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = obj[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// stringClaim извлекает строковый claim. Числовые значения (Telegram ID
// часто приходит числом) приводятся к строке.
func stringClaim(claims jwt.MapClaims, path string) string {
	switch v := claimByPath(claims, path).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// stringSliceClaim извлекает claim-массив строк.
func stringSliceClaim(claims jwt.MapClaims, path string) []string {
	raw, ok := claimByPath(claims, path).([]any)
	if !ok {
		return nil
	}

	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

// --- Авторизационные middleware ---

// RequireAdmin возвращает middleware, требующий роль администратора.
// Анонимные запросы сюда не допускаются: пермиссивная модель ownership
// распространяется только на операции с собственными анкетами.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())
			if caller == nil {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}

			if !caller.IsAdmin {
				apierrors.Forbidden(w, "Недостаточно прав: требуется роль администратора")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// CallerFromContext извлекает идентичность вызывающей стороны из контекста.
// Возвращает nil для анонимного запроса.
func CallerFromContext(ctx context.Context) *ownership.Caller {
	caller, _ := ctx.Value(ContextKeyCaller).(*ownership.Caller)
	return caller
}

// SubjectFromContext извлекает sub из контекста запроса.
// Возвращает пустую строку, если claims не найдены.
func SubjectFromContext(ctx context.Context) string {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// --- ReadinessChecker для Keycloak ---

// KeycloakReadinessChecker — проверка доступности Keycloak через JWKS.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewKeycloakReadinessChecker создаёт checker доступности Keycloak.
func NewKeycloakReadinessChecker(jwksURL, caCertPath string, readinessTimeout time.Duration) (*KeycloakReadinessChecker, error) {
	client := &http.Client{Timeout: readinessTimeout}
	if caCertPath != "" {
		var err error
		client, err = httpClientWithCA(caCertPath, readinessTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
		}
	}

	return &KeycloakReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint Keycloak.
func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req) //nolint:gosec // G704: URL из конфигурации Keycloak
	if err != nil {
		return statusFail, fmt.Sprintf("Keycloak JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Keycloak JWKS вернул статус %d", resp.StatusCode)
	}

	// Проверяем, что ответ — валидный JSON с ключами
	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("Keycloak JWKS: невалидный JSON: %v", err)
	}

	if len(jwksResp.Keys) == 0 {
		return "degraded", "Keycloak JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}

// Close освобождает ресурсы JWT middleware.
func (j *JWTAuth) Close() {
	// keyfunc v3 не требует явного закрытия
}
