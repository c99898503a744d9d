// entry.go — дочерние записи анкеты: образование, опыт работы,
// государственная служба. Записи не имеют самостоятельного жизненного
// цикла: при обновлении группы весь набор заменяется целиком.
package model

import "time"

// EntryGroup — тег группы дочерних записей.
type EntryGroup string

const (
	GroupEducation         EntryGroup = "education"
	GroupWorkExperience    EntryGroup = "work_experience"
	GroupGovernmentService EntryGroup = "government_service"
)

// EducationEntry — запись об образовании (таблица education_entries).
type EducationEntry struct {
	ID             string
	ApplicationID  string
	Institution    string
	Level          string
	GraduationYear *int
	GPA            *float64
	CreatedAt      time.Time
}

// WorkExperienceEntry — запись об опыте работы (таблица work_experience_entries).
type WorkExperienceEntry struct {
	ID            string
	ApplicationID string
	Company       string
	Position      string
	StartDate     *time.Time
	EndDate       *time.Time
	Duties        string
	CreatedAt     time.Time
}

// GovernmentServiceEntry — запись о государственной службе
// (таблица government_service_entries).
type GovernmentServiceEntry struct {
	ID            string
	ApplicationID string
	Agency        string
	Position      string
	StartDate     *time.Time
	EndDate       *time.Time
	ReasonLeft    string
	CreatedAt     time.Time
}

// --- Сырые входные записи ---
//
// Клиентские формы присылают числа и даты строками, а некоторые поля —
// под альтернативными именами (institution/school). Преобразование в
// типизированные записи выполняет Collection Reconciler; здесь только
// перенос полей как есть.

// EducationInput — сырая запись об образовании из payload.
type EducationInput struct {
	Institution    string
	School         string // альтернативное имя поля institution
	Level          string
	GraduationYear string
	GPA            string
}

// WorkExperienceInput — сырая запись об опыте работы из payload.
type WorkExperienceInput struct {
	Company      string
	Organization string // альтернативное имя поля company
	Position     string
	StartDate    string
	EndDate      string
	Duties       string
}

// GovernmentServiceInput — сырая запись о госслужбе из payload.
type GovernmentServiceInput struct {
	Agency     string
	Position   string
	StartDate  string
	EndDate    string
	ReasonLeft string
}
