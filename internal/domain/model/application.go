// Пакет model — доменные модели Admin Module системы Anketa.
// application.go — анкета соискателя (родительская запись).
package model

import "time"

// Status — канонический статус анкеты.
// В БД сохраняются только эти шесть значений, любые входные
// варианты приводятся к ним через пакет vocab.
type Status string

const (
	// StatusPending — новая анкета, ещё не рассмотрена.
	StatusPending Status = "PENDING"
	// StatusReviewing — анкета на рассмотрении.
	StatusReviewing Status = "REVIEWING"
	// StatusContacted — с соискателем связались.
	StatusContacted Status = "CONTACTED"
	// StatusHired — соискатель принят.
	StatusHired Status = "HIRED"
	// StatusRejected — отказ.
	StatusRejected Status = "REJECTED"
	// StatusArchived — анкета в архиве.
	StatusArchived Status = "ARCHIVED"
)

// Gender — пол соискателя.
type Gender string

const (
	GenderMale        Gender = "MALE"
	GenderFemale      Gender = "FEMALE"
	GenderUnspecified Gender = "UNSPECIFIED"
)

// MaritalStatus — семейное положение.
type MaritalStatus string

const (
	MaritalSingle      MaritalStatus = "SINGLE"
	MaritalMarried     MaritalStatus = "MARRIED"
	MaritalDivorced    MaritalStatus = "DIVORCED"
	MaritalWidowed     MaritalStatus = "WIDOWED"
	MaritalUnspecified MaritalStatus = "UNSPECIFIED"
)

// Application — анкета соискателя (таблица applications).
// Владелец идентифицируется либо внутренним user id,
// либо внешним id мессенджер-платформы (Telegram-бот интейка).
// Оба поля могут быть пустыми — анкеты, созданные до внедрения
// отслеживания владельца.
type Application struct {
	ID              string
	OwnerUserID     *string
	OwnerExternalID *string
	FullName        string
	Email           string
	Phone           string
	BirthDate       *time.Time
	Gender          Gender
	MaritalStatus   MaritalStatus
	City            string
	DesiredPosition string
	About           string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ApplicationPatch — разреженный payload частичного обновления анкеты.
// nil-поле означает «не трогать». Для групп дочерних записей
// nil-указатель на срез означает «группу не трогать», а пустой
// срез — «очистить группу» (см. service.Reconcile*).
// Строковые enum-поля приходят в произвольной лексике вызывающей
// стороны и нормализуются через пакет vocab.
type ApplicationPatch struct {
	FullName        *string
	Email           *string
	Phone           *string
	BirthDate       *time.Time
	Gender          *string
	MaritalStatus   *string
	City            *string
	DesiredPosition *string
	About           *string
	Status          *string

	Education         *[]EducationInput
	WorkExperience    *[]WorkExperienceInput
	GovernmentService *[]GovernmentServiceInput
}
