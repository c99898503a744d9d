// reference.go — справочные данные: отделы и группы направлений.
// Заполняются миграциями, через API доступны только на чтение.
package model

import "time"

// Department — отдел (таблица departments).
type Department struct {
	ID        string
	Code      string
	Title     string
	CreatedAt time.Time
}

// MissionGroup — группа направлений (таблица mission_groups).
type MissionGroup struct {
	ID        string
	Code      string
	Title     string
	CreatedAt time.Time
}
