// Пакет contract — OpenAPI контракт Admin Module и middleware
// валидации входящих запросов против него.
// Контракт встроен в бинарь: сервис и его документация не расходятся.
package contract

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "embed"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/goanketa/admin-module/internal/api/errors"
)

//go:embed openapi.yaml
var specData []byte

// Load загружает и валидирует встроенный OpenAPI документ.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(specData)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI документа: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI документа: %w", err)
	}
	return doc, nil
}

// Validator — middleware валидации запросов против OpenAPI контракта.
type Validator struct {
	router routers.Router
	logger *slog.Logger
}

// NewValidator создаёт middleware валидации по загруженному документу.
func NewValidator(doc *openapi3.T, logger *slog.Logger) (*Validator, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("создание OpenAPI router: %w", err)
	}
	return &Validator{
		router: router,
		logger: logger.With(slog.String("component", "contract_validator")),
	}, nil
}

// Middleware валидирует структуру запроса (path, query, тело) против
// контракта. Неизвестные пути пропускаются дальше — 404 отдаёт chi.
// Авторизацию контракт не проверяет (security в документе нет):
// это зона JWT middleware.
func (v *Validator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				if errors.Is(err, routers.ErrPathNotFound) {
					next.ServeHTTP(w, r)
					return
				}
				if errors.Is(err, routers.ErrMethodNotAllowed) {
					apierrors.WriteError(w, http.StatusMethodNotAllowed,
						apierrors.CodeValidationError, "Метод не поддерживается")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				var reqErr *openapi3filter.RequestError
				if errors.As(err, &reqErr) {
					apierrors.ValidationError(w, "Запрос не соответствует контракту: "+reqErr.Error())
					return
				}
				v.logger.Debug("Запрос отклонён контрактом",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, "Запрос не соответствует контракту")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
