// reconcile.go — преобразование сырых групп дочерних записей payload
// в типизированные записи БД. Клиентские формы шлют числа и даты
// строками, часть полей — под альтернативными именами; пустые
// элементы-заглушки отбрасываются до вставки.
package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
)

// dateLayout — формат дат в payload дочерних записей.
const dateLayout = "2006-01-02"

// reconcileEducation преобразует сырые записи об образовании.
// Полностью пустые элементы пропускаются. Нечисловой год или GPA —
// ошибка валидации всей операции.
func reconcileEducation(inputs []model.EducationInput) ([]model.EducationEntry, error) {
	result := make([]model.EducationEntry, 0, len(inputs))
	for i, in := range inputs {
		institution := firstNonEmpty(in.Institution, in.School)
		if institution == "" && blank(in.Level) && blank(in.GraduationYear) && blank(in.GPA) {
			continue
		}

		entry := model.EducationEntry{
			Institution: institution,
			Level:       strings.TrimSpace(in.Level),
		}

		if raw := strings.TrimSpace(in.GraduationYear); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: education[%d].graduationYear: не число: %q", ErrValidation, i, raw)
			}
			entry.GraduationYear = &year
		}

		if raw := strings.TrimSpace(in.GPA); raw != "" {
			gpa, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: education[%d].gpa: не число: %q", ErrValidation, i, raw)
			}
			entry.GPA = &gpa
		}

		result = append(result, entry)
	}
	return result, nil
}

// reconcileWorkExperience преобразует сырые записи об опыте работы.
func reconcileWorkExperience(inputs []model.WorkExperienceInput) ([]model.WorkExperienceEntry, error) {
	result := make([]model.WorkExperienceEntry, 0, len(inputs))
	for i, in := range inputs {
		company := firstNonEmpty(in.Company, in.Organization)
		if company == "" && blank(in.Position) && blank(in.StartDate) && blank(in.EndDate) && blank(in.Duties) {
			continue
		}

		entry := model.WorkExperienceEntry{
			Company:  company,
			Position: strings.TrimSpace(in.Position),
			Duties:   strings.TrimSpace(in.Duties),
		}

		var err error
		if entry.StartDate, err = parseOptionalDate(in.StartDate); err != nil {
			return nil, fmt.Errorf("%w: workExperience[%d].startDate: %v", ErrValidation, i, err)
		}
		if entry.EndDate, err = parseOptionalDate(in.EndDate); err != nil {
			return nil, fmt.Errorf("%w: workExperience[%d].endDate: %v", ErrValidation, i, err)
		}

		result = append(result, entry)
	}
	return result, nil
}

// reconcileGovernmentService преобразует сырые записи о госслужбе.
func reconcileGovernmentService(inputs []model.GovernmentServiceInput) ([]model.GovernmentServiceEntry, error) {
	result := make([]model.GovernmentServiceEntry, 0, len(inputs))
	for i, in := range inputs {
		agency := strings.TrimSpace(in.Agency)
		if agency == "" && blank(in.Position) && blank(in.StartDate) && blank(in.EndDate) && blank(in.ReasonLeft) {
			continue
		}

		entry := model.GovernmentServiceEntry{
			Agency:     agency,
			Position:   strings.TrimSpace(in.Position),
			ReasonLeft: strings.TrimSpace(in.ReasonLeft),
		}

		var err error
		if entry.StartDate, err = parseOptionalDate(in.StartDate); err != nil {
			return nil, fmt.Errorf("%w: governmentService[%d].startDate: %v", ErrValidation, i, err)
		}
		if entry.EndDate, err = parseOptionalDate(in.EndDate); err != nil {
			return nil, fmt.Errorf("%w: governmentService[%d].endDate: %v", ErrValidation, i, err)
		}

		result = append(result, entry)
	}
	return result, nil
}

// parseOptionalDate разбирает дату формата YYYY-MM-DD.
// Пустая строка — отсутствие даты, не ошибка.
func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("некорректная дата %q, ожидается формат %s", raw, dateLayout)
	}
	return &t, nil
}

// firstNonEmpty возвращает первое непустое значение после TrimSpace.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
