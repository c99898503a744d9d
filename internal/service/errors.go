// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden — вызывающая сторона не владеет записью.
	ErrForbidden = errors.New("доступ запрещён — запись принадлежит другому пользователю")
	// ErrConflict — конфликт (дублирующийся ресурс или исчерпаны
	// попытки обновления из-за конкурирующих транзакций).
	ErrConflict = errors.New("конфликт — ресурс занят или уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrFSUnavailable — файловое хранилище недоступно.
	ErrFSUnavailable = errors.New("файловое хранилище недоступно")
	// ErrIDPUnavailable — Identity Provider (Keycloak) недоступен.
	ErrIDPUnavailable = errors.New("Identity Provider недоступен")
)
