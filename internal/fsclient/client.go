// Пакет fsclient — HTTP-клиент файлового хранилища, в котором живут
// байты документов анкет. Поддерживает TLS с кастомным CA
// (AM_FILE_STORAGE_CA_CERT_PATH).
// Операции: Info (GET /api/v1/info), FileInfo (GET /api/v1/files/{id}),
// DeleteFile (DELETE /api/v1/files/{id}).
package fsclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrFileNotFound — файл отсутствует в хранилище.
var ErrFileNotFound = errors.New("файл не найден в хранилище")

// TokenProvider — функция, возвращающая JWT для авторизации запросов
// к хранилищу.
type TokenProvider func(ctx context.Context) (string, error)

// StorageInfo — информация о хранилище (ответ GET /api/v1/info).
type StorageInfo struct {
	Status   string           `json:"status"`
	Version  string           `json:"version"`
	Capacity *StorageCapacity `json:"capacity,omitempty"`
}

// StorageCapacity — данные о ёмкости хранилища.
type StorageCapacity struct {
	TotalBytes     int64 `json:"total_bytes"`
	UsedBytes      int64 `json:"used_bytes"`
	AvailableBytes int64 `json:"available_bytes"`
}

// FileInfo — метаданные файла в хранилище (ответ GET /api/v1/files/{id}).
type FileInfo struct {
	FileID           string `json:"file_id"`
	OriginalFilename string `json:"original_filename"`
	ContentType      string `json:"content_type"`
	Size             int64  `json:"size"`
	Checksum         string `json:"checksum,omitempty"`
	UploadedAt       string `json:"uploaded_at,omitempty"`
}

// Client — HTTP-клиент файлового хранилища.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// New создаёт клиент хранилища.
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// tokenProvider — функция для получения JWT (может быть nil для public endpoints).
func New(baseURL, caCertPath string, timeout time.Duration, tokenProvider TokenProvider, logger *slog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата хранилища: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат хранилища добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", "fs_client")),
	}, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// Info запрашивает информацию о хранилище.
// GET /api/v1/info — публичный endpoint, не требует авторизации.
func (c *Client) Info(ctx context.Context) (*StorageInfo, error) {
	reqURL := c.baseURL + "/api/v1/info"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Info: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос Info к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("хранилище %s вернуло статус %d: %s", c.baseURL, resp.StatusCode, string(body))
	}

	var info StorageInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("декодирование Info от %s: %w", c.baseURL, err)
	}

	return &info, nil
}

// FileInfo запрашивает метаданные файла.
// GET /api/v1/files/{id} — требует авторизации (scope: files:read).
func (c *Client) FileInfo(ctx context.Context, fileID string) (*FileInfo, error) {
	reqURL := c.baseURL + "/api/v1/files/" + fileID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса FileInfo: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос FileInfo к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("хранилище %s FileInfo вернуло статус %d: %s", c.baseURL, resp.StatusCode, string(body))
	}

	var info FileInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("декодирование FileInfo от %s: %w", c.baseURL, err)
	}

	return &info, nil
}

// DeleteFile удаляет файл из хранилища.
// DELETE /api/v1/files/{id} — требует авторизации (scope: files:write).
// Отсутствующий файл — ErrFileNotFound, не фатальная ошибка для вызывающих.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	reqURL := c.baseURL + "/api/v1/files/" + fileID

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("создание запроса DeleteFile: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос DeleteFile к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("хранилище %s DeleteFile вернуло статус %d: %s", c.baseURL, resp.StatusCode, string(body))
	}
}

// authorize добавляет Bearer-токен в запрос, если настроен tokenProvider.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokenProvider == nil {
		return nil
	}
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return fmt.Errorf("получение токена для хранилища: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
