// Package i18n holds the fixed user-facing messages. Backend error details
// are logged, never shown; users only ever see one of these strings.
package i18n

import (
	"golang.org/x/text/language"
)

// MessageID names a user-facing message.
type MessageID string

const (
	MsgAuthFailed       MessageID = "auth_failed"
	MsgSessionExpired   MessageID = "session_expired"
	MsgRegisterFailed   MessageID = "register_failed"
	MsgRequiredFields   MessageID = "required_fields"
	MsgInvalidEmail     MessageID = "invalid_email"
	MsgPasswordTooShort MessageID = "password_too_short"
	MsgPasswordMismatch MessageID = "password_mismatch"
	MsgTrainFailed      MessageID = "train_failed"
	MsgForecastFailed   MessageID = "forecast_failed"
	MsgScanFailed       MessageID = "scan_failed"
	MsgImportFailed     MessageID = "import_failed"
	MsgUnsupportedFile  MessageID = "unsupported_file"
	MsgExportFailed     MessageID = "export_failed"
	MsgExportDone       MessageID = "export_done"
	MsgLoadFailed       MessageID = "load_failed"
	MsgRefreshFailed    MessageID = "refresh_failed"
	MsgScheduleFailed   MessageID = "schedule_failed"
	MsgNotifyFailed     MessageID = "notify_failed"

	MsgStatusWaiting MessageID = "status_waiting"
	MsgStatusRunning MessageID = "status_running"
	MsgStatusDone    MessageID = "status_done"
	MsgStatusFailed  MessageID = "status_failed"

	MsgPresetDraft    MessageID = "preset_draft"
	MsgPresetBaseline MessageID = "preset_baseline"
	MsgPresetThorough MessageID = "preset_thorough"
)

var catalogs = map[language.Tag]map[MessageID]string{
	language.Russian: {
		MsgAuthFailed:       "Неверный email или пароль",
		MsgSessionExpired:   "Сессия истекла, войдите снова",
		MsgRegisterFailed:   "Ошибка регистрации",
		MsgRequiredFields:   "Заполните все поля",
		MsgInvalidEmail:     "Некорректный email",
		MsgPasswordTooShort: "Пароль должен содержать минимум 8 символов",
		MsgPasswordMismatch: "Пароли не совпадают",
		MsgTrainFailed:      "Ошибка запуска обучения",
		MsgForecastFailed:   "Ошибка прогноза",
		MsgScanFailed:       "Ошибка сканирования",
		MsgImportFailed:     "Импорт не удался",
		MsgUnsupportedFile:  "Поддерживаются только файлы Excel (.xlsx, .xls)",
		MsgExportFailed:     "Экспорт не удался",
		MsgExportDone:       "Готово",
		MsgLoadFailed:       "Не удалось загрузить данные",
		MsgRefreshFailed:    "Не удалось обновить статус задачи",
		MsgScheduleFailed:   "Не удалось сохранить расписание",
		MsgNotifyFailed:     "Не удалось изменить уведомления",
		MsgStatusWaiting:    "Ожидает",
		MsgStatusRunning:    "В процессе",
		MsgStatusDone:       "Готово",
		MsgStatusFailed:     "Ошибка",
		MsgPresetDraft:      "Быстрый черновик",
		MsgPresetBaseline:   "Стабильный базовый",
		MsgPresetThorough:   "Тщательный",
	},
	language.English: {
		MsgAuthFailed:       "Invalid email or password",
		MsgSessionExpired:   "Session expired, please sign in again",
		MsgRegisterFailed:   "Registration failed",
		MsgRequiredFields:   "Please fill in all fields",
		MsgInvalidEmail:     "Invalid email address",
		MsgPasswordTooShort: "Password must be at least 8 characters",
		MsgPasswordMismatch: "Passwords do not match",
		MsgTrainFailed:      "Failed to start training",
		MsgForecastFailed:   "Forecast failed",
		MsgScanFailed:       "Anomaly scan failed",
		MsgImportFailed:     "Import failed",
		MsgUnsupportedFile:  "Only Excel files (.xlsx, .xls) are supported",
		MsgExportFailed:     "Export failed",
		MsgExportDone:       "Done",
		MsgLoadFailed:       "Failed to load data",
		MsgRefreshFailed:    "Failed to refresh task status",
		MsgScheduleFailed:   "Failed to save the schedule",
		MsgNotifyFailed:     "Failed to change notifications",
		MsgStatusWaiting:    "Waiting",
		MsgStatusRunning:    "In progress",
		MsgStatusDone:       "Done",
		MsgStatusFailed:     "Error",
		MsgPresetDraft:      "Quick draft",
		MsgPresetBaseline:   "Stable baseline",
		MsgPresetThorough:   "Thorough",
	},
}

// Russian is the fallback; the dashboard was written for Russian operators.
var matcher = language.NewMatcher([]language.Tag{language.Russian, language.English})

// Catalog resolves messages for one locale.
type Catalog struct {
	tag      language.Tag
	messages map[MessageID]string
}

// New picks the closest supported locale for a tag such as "en-GB" or "ru".
func New(locale string) *Catalog {
	tag, _ := language.MatchStrings(matcher, locale)
	base, _ := tag.Base()
	for supported, messages := range catalogs {
		if b, _ := supported.Base(); b == base {
			return &Catalog{tag: supported, messages: messages}
		}
	}
	return &Catalog{tag: language.Russian, messages: catalogs[language.Russian]}
}

// Locale returns the resolved language, e.g. "ru".
func (c *Catalog) Locale() string {
	return c.tag.String()
}

// T returns the message text, falling back to Russian and then to the id.
func (c *Catalog) T(id MessageID) string {
	if s, ok := c.messages[id]; ok {
		return s
	}
	if s, ok := catalogs[language.Russian][id]; ok {
		return s
	}
	return string(id)
}
