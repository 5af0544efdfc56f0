package completion

import "trade-closeout/internal/models"

// Label — подпись статуса для карточек и бейджей.
func Label(s models.CompletionStatus) string {
	switch s {
	case models.StatusInProgress:
		return "В работе"
	case models.StatusCompletionRequested:
		return "Запрошена приёмка"
	case models.StatusCompleted:
		return "Принято"
	case models.StatusCompletedWithDefects:
		return "Принято с замечаниями"
	case models.StatusDefectsResolved:
		return "Замечания устранены"
	case models.StatusArchived:
		return "В архиве"
	default:
		return string(s)
	}
}

// ActionLabel — подпись одной и той же операции финальной приёмки для разных ролей.
func ActionLabel(role models.UserRole) string {
	if role == models.RoleContractor {
		return "Сообщить об устранении"
	}
	return "Провести финальную приёмку"
}
