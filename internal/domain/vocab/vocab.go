// Пакет vocab — нормализация входной лексики enum-полей анкеты.
// Разные вызывающие стороны присылают статусы и анкетные enum-поля
// в разной лексике: канонические английские имена, устаревшие
// lower-case варианты и русские отображаемые подписи. Каждое поле
// имеет свою явную таблицу алиасов many-to-one на канонические
// значения. Пакет чистый, без I/O и без побочных эффектов.
//
// Контракт: пустая строка означает «поле отсутствует» и обрабатывается
// вызывающей стороной до обращения сюда. Нераспознанное значение
// возвращается с ok=false; вызывающая сторона подставляет дефолт поля
// (Default*), а не прерывает операцию.
package vocab

import (
	"strings"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
)

// Дефолты полей при нераспознанном входном значении.
const (
	DefaultStatus        = model.StatusPending
	DefaultGender        = model.GenderUnspecified
	DefaultMaritalStatus = model.MaritalUnspecified
)

// statusAliases — таблица алиасов статуса анкеты.
// Канонические значения включены сами в себя: нормализация —
// неподвижная точка на канонических значениях.
// Алиас "approved" исторически в одном из путей обновления
// отображался в несуществующее значение APPROVED; обе точки вызова
// сведены сюда, каноническая цель — HIRED.
var statusAliases = map[string]model.Status{
	// канонические
	"pending":   model.StatusPending,
	"reviewing": model.StatusReviewing,
	"contacted": model.StatusContacted,
	"hired":     model.StatusHired,
	"rejected":  model.StatusRejected,
	"archived":  model.StatusArchived,

	// устаревшие lower-case варианты
	"new":       model.StatusPending,
	"open":      model.StatusPending,
	"in_review": model.StatusReviewing,
	"review":    model.StatusReviewing,
	"contact":   model.StatusContacted,
	"approved":  model.StatusHired,
	"accepted":  model.StatusHired,
	"declined":  model.StatusRejected,
	"refused":   model.StatusRejected,
	"closed":    model.StatusArchived,
	"archive":   model.StatusArchived,

	// русские отображаемые подписи
	"новая":            model.StatusPending,
	"на рассмотрении":  model.StatusReviewing,
	"рассматривается":  model.StatusReviewing,
	"связались":        model.StatusContacted,
	"принят":           model.StatusHired,
	"принята":          model.StatusHired,
	"отказ":            model.StatusRejected,
	"отклонена":        model.StatusRejected,
	"в архиве":         model.StatusArchived,
	"архивная":         model.StatusArchived,
}

// genderAliases — таблица алиасов пола.
var genderAliases = map[string]model.Gender{
	"male":        model.GenderMale,
	"female":      model.GenderFemale,
	"unspecified": model.GenderUnspecified,

	"m": model.GenderMale,
	"f": model.GenderFemale,

	"м":       model.GenderMale,
	"ж":       model.GenderFemale,
	"муж":     model.GenderMale,
	"жен":     model.GenderFemale,
	"мужской": model.GenderMale,
	"женский": model.GenderFemale,
	"не указан": model.GenderUnspecified,
}

// maritalAliases — таблица алиасов семейного положения.
var maritalAliases = map[string]model.MaritalStatus{
	"single":      model.MaritalSingle,
	"married":     model.MaritalMarried,
	"divorced":    model.MaritalDivorced,
	"widowed":     model.MaritalWidowed,
	"unspecified": model.MaritalUnspecified,

	"холост":     model.MaritalSingle,
	"не замужем": model.MaritalSingle,
	"женат":      model.MaritalMarried,
	"замужем":    model.MaritalMarried,
	"разведён":   model.MaritalDivorced,
	"разведен":   model.MaritalDivorced,
	"разведена":  model.MaritalDivorced,
	"вдовец":     model.MaritalWidowed,
	"вдова":      model.MaritalWidowed,
	"не указано": model.MaritalUnspecified,
}

// NormalizeStatus приводит входное значение статуса к каноническому.
// ok=false — значение не распознано.
func NormalizeStatus(raw string) (model.Status, bool) {
	s, ok := statusAliases[normalizeKey(raw)]
	return s, ok
}

// NormalizeGender приводит входное значение пола к каноническому.
func NormalizeGender(raw string) (model.Gender, bool) {
	g, ok := genderAliases[normalizeKey(raw)]
	return g, ok
}

// NormalizeMaritalStatus приводит входное значение семейного положения
// к каноническому.
func NormalizeMaritalStatus(raw string) (model.MaritalStatus, bool) {
	m, ok := maritalAliases[normalizeKey(raw)]
	return m, ok
}

// normalizeKey — общая подготовка ключа поиска: обрезка пробелов
// и приведение к нижнему регистру (работает и для кириллицы).
func normalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
