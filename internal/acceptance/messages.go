package acceptance

import (
	"errors"

	"trade-closeout/internal/apiclient"
	"trade-closeout/internal/completion"
	"trade-closeout/internal/defects"
	"trade-closeout/internal/tradestate"
)

// DefaultMessage — текст для ошибок без отдельного сообщения.
const DefaultMessage = "Не удалось выполнить действие."

// UserMessage — текст ошибки для пользователя. Порядок важен: сначала
// локальные проверки, потом ответы сервера.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, tradestate.ErrBusy):
		return "Запрос уже выполняется, подождите."
	case errors.Is(err, completion.ErrRoleNotPermitted):
		return "Это действие недоступно для вашей роли."
	case errors.Is(err, completion.ErrIllegalTransition):
		return "Это действие недоступно в текущем статусе."
	case errors.Is(err, completion.ErrPrecondition):
		return "Условия для перехода не выполнены: проверьте прогресс и отметки дефектов."
	case errors.Is(err, ErrInvalidRatings):
		return "Поставьте общую оценку: от 1 до 5 звёзд."
	case errors.Is(err, ErrInvalidProgress):
		return "Прогресс должен быть от 0 до 100."
	case errors.Is(err, defects.ErrInvalidDraft):
		return "Проверьте описание дефектов: нужен заголовок и корректная серьёзность."
	case errors.Is(err, ErrAcceptanceNotFound):
		return "Запись приёмки не найдена. Обновите страницу."
	case errors.Is(err, tradestate.ErrDiverged):
		return "Статус на сервере изменился. Обновите страницу."
	case errors.Is(err, apiclient.ErrStaleCredential):
		return "Сессия истекла. Войдите снова."
	case errors.Is(err, apiclient.ErrConflict):
		return "Данные уже изменены другим пользователем. Обновите страницу."
	case errors.Is(err, apiclient.ErrForbidden):
		return "Доступ запрещён."
	case apiclient.IsRetryable(err):
		return "Сервер недоступен. Попробуйте ещё раз."
	}
	return DefaultMessage
}
