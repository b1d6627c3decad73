package assistant

import (
	"go.uber.org/zap"

	"study-bot/api/internal/session"
)

// Подписи кнопок меню. Сравниваются с текстом сообщения буквально.
const (
	LabelSolve      = "📸 Решение задания"
	LabelExplain    = "📖 Объяснение задания"
	LabelParaphrase = "✏️ Перефразировать"
	LabelShorten    = "✂️ Сократить"
)

// MenuRows — раскладка клавиатуры меню (2×2).
var MenuRows = [][]string{
	{LabelSolve, LabelExplain},
	{LabelParaphrase, LabelShorten},
}

var labelModes = map[string]session.Mode{
	LabelSolve:      session.Solve,
	LabelExplain:    session.Explain,
	LabelParaphrase: session.Paraphrase,
	LabelShorten:    session.Shorten,
}

func ModeForLabel(text string) (session.Mode, bool) {
	m, ok := labelModes[text]
	return m, ok
}

// stateFor: Solve/Explain принимают текст или фото, Paraphrase/Shorten — только текст.
func stateFor(mode session.Mode) session.State {
	switch mode {
	case session.Solve, session.Explain:
		return session.AwaitingInput
	case session.Paraphrase, session.Shorten:
		return session.AwaitingText
	default:
		return session.Idle
	}
}

// Intents переводит выбор в меню в состояние сессии. Вызовов к модели нет.
type Intents struct {
	sessions *session.Store
	log      *zap.Logger
}

func NewIntents(sessions *session.Store, log *zap.Logger) *Intents {
	if log == nil {
		log = zap.NewNop()
	}
	return &Intents{sessions: sessions, log: log}
}

// Select ставит режим и ожидание ввода; возвращает приглашение прислать задание.
func (in *Intents) Select(chatID int64, mode session.Mode) Reply {
	return in.enter(chatID, stateFor(mode), mode)
}

func (in *Intents) enter(chatID int64, state session.State, mode session.Mode) Reply {
	if state == session.Idle {
		in.sessions.Clear(chatID)
		return Reply{Text: useMenuText, Menu: true}
	}
	if err := in.sessions.Set(chatID, state, mode); err != nil {
		in.log.Warn("set session failed", zap.Int64("chat_id", chatID), zap.Error(err))
		in.sessions.Clear(chatID)
		return Reply{Text: useMenuText, Menu: true}
	}
	return Reply{Text: askForInputText(mode), Rich: true}
}

// Start — /start: сброс сессии и приветствие с меню.
func (in *Intents) Start(chatID int64) Reply {
	in.sessions.Clear(chatID)
	return Reply{Text: welcomeText, Menu: true, Rich: true}
}
