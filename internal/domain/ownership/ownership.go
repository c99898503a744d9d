// Пакет ownership — решение о допуске мутирующей операции над анкетой.
// Модель намеренно пермиссивная: пока прокидывание идентичности не
// развёрнуто на всех поверхностях системы, отсутствие данных о вызывающей
// стороне или о владельце записи приводит к ALLOW, а не к отказу.
// Каждый пермиссивный исход помечен собственной причиной, чтобы его
// можно было отличить в логах от честного совпадения владельца и позже
// ужесточить политику без изменения кода вызывающих сторон.
package ownership

// Caller — идентичность вызывающей стороны в рамках одного запроса.
// Извлекается JWT middleware; nil *Caller означает, что сессию
// установить не удалось вовсе (анонимный запрос).
type Caller struct {
	// UserID — внутренний идентификатор пользователя (sub из JWT).
	UserID string
	// ExternalID — идентификатор во внешней мессенджер-платформе
	// (Telegram user id из кастомного claim).
	ExternalID string
	// IsAdmin — эффективная роль admin.
	IsAdmin bool
}

// Reason — причина решения ALLOW.
type Reason string

const (
	// ReasonAdmin — вызывающая сторона имеет роль admin.
	ReasonAdmin Reason = "admin"
	// ReasonNoCallerIdentity — сессия не установлена (анонимный запрос).
	ReasonNoCallerIdentity Reason = "no_caller_identity"
	// ReasonCallerWithoutIDs — сессия есть, но ни userId, ни externalId
	// не заполнены.
	ReasonCallerWithoutIDs Reason = "caller_without_ids"
	// ReasonRecordWithoutOwner — у записи не заполнен владелец
	// (создана до внедрения отслеживания владельца).
	ReasonRecordWithoutOwner Reason = "record_without_owner"
	// ReasonMatched — идентификатор вызывающей стороны совпал
	// с владельцем записи.
	ReasonMatched Reason = "matched"
)

// Decision — решение о допуске. Allowed=false означает DENY.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Permissive сообщает, является ли ALLOW пермиссивным fallback,
// а не подтверждённым правом (admin или совпадение владельца).
func (d Decision) Permissive() bool {
	return d.Allowed && d.Reason != ReasonAdmin && d.Reason != ReasonMatched
}

// Decide принимает решение о допуске мутирующей операции.
// ownerUserID и ownerExternalID — сохранённые идентификаторы владельца
// записи (nil — не заполнены). Правила проверяются по порядку
// с коротким замыканием; порядок — часть контракта.
func Decide(caller *Caller, ownerUserID, ownerExternalID *string) Decision {
	// 1. Админ может всё.
	if caller != nil && caller.IsAdmin {
		return Decision{Allowed: true, Reason: ReasonAdmin}
	}

	// 2. Сессия не установлена — пермиссивный fallback.
	if caller == nil {
		return Decision{Allowed: true, Reason: ReasonNoCallerIdentity}
	}

	// 3. Сессия есть, но идентификаторы не заполнены.
	if caller.UserID == "" && caller.ExternalID == "" {
		return Decision{Allowed: true, Reason: ReasonCallerWithoutIDs}
	}

	// 4. У записи нет владельца.
	if !populated(ownerUserID) && !populated(ownerExternalID) {
		return Decision{Allowed: true, Reason: ReasonRecordWithoutOwner}
	}

	// 5. Совпадение по любому из идентификаторов.
	if populated(ownerUserID) && caller.UserID != "" && *ownerUserID == caller.UserID {
		return Decision{Allowed: true, Reason: ReasonMatched}
	}
	if populated(ownerExternalID) && caller.ExternalID != "" && *ownerExternalID == caller.ExternalID {
		return Decision{Allowed: true, Reason: ReasonMatched}
	}

	return Decision{Allowed: false}
}

// populated — указатель не nil и строка не пуста.
func populated(s *string) bool {
	return s != nil && *s != ""
}
