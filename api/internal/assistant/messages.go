package assistant

import (
	"errors"
	"fmt"

	"study-bot/api/internal/llm"
	"study-bot/api/internal/session"
)

const (
	welcomeText = "🌟 *Привет! Я бесплатный бот-помощник для учёбы!* 🌟\n\n" +
		"📚 Я помогу тебе:\n" +
		"• Решать задачи по фото или тексту\n" +
		"• Объяснять сложные темы\n" +
		"• Перефразировать и сокращать текст\n\n" +
		"👇 *Выбери действие:*"

	useMenuText  = "Пожалуйста, используй кнопки меню для выбора действия 👇"
	menuOnlyText = "Я понимаю только команды из меню 👇\nПожалуйста, воспользуйся кнопками!"

	photoFirstText = "📸 Сначала выбери действие в меню:\n" +
		"• " + LabelSolve + "\n" +
		"• " + LabelExplain

	textOnlyText = "✍️ В этом режиме я работаю только с текстом.\n" +
		"Отправь текст или выбери другое действие в меню 👇"

	thinkingImage = "🤔 Анализирую изображение..."
	thinkingTask  = "🤔 Думаю над решением..."
	thinkingText  = "⏳ Обрабатываю текст..."

	emptyResultText = "❌ Не удалось получить ответ от модели"
)

func askForInputText(mode session.Mode) string {
	switch mode {
	case session.Solve:
		return "📤 *Отправь мне:*\n• 📷 Фото задачи\n• 📝 Текст задачи\n\nЯ решу её максимально подробно!"
	case session.Explain:
		return "📤 *Отправь мне:*\n• 📷 Фото с заданием\n• 📝 Текст задания\n\nЯ объясню каждый шаг решения!"
	case session.Paraphrase:
		return "✍️ *Отправь текст,* который нужно перефразировать:"
	case session.Shorten:
		return "✍️ *Отправь текст,* который нужно сократить:"
	default:
		return useMenuText
	}
}

func thinkingFor(mode session.Mode, kind PayloadKind) string {
	if kind == ImagePayload {
		return thinkingImage
	}
	if mode == session.Paraphrase || mode == session.Shorten {
		return thinkingText
	}
	return thinkingTask
}

// resultReply — ответ модели или причина ошибки как есть.
func resultReply(c llm.Capability, res llm.Result) Reply {
	if res.OK() {
		return Reply{Text: res.Content, Rich: true}
	}
	if errors.Is(res.Err, llm.ErrEmptyResponse) {
		return Reply{Text: emptyResultText}
	}
	if c == llm.VisionCompletion {
		return Reply{Text: "⚠️ Ошибка при обработке изображения: " + res.Reason()}
	}
	return Reply{Text: "⚠️ Ошибка при обработке текста: " + res.Reason()}
}

func errorReply(err error) Reply {
	return Reply{Text: fmt.Sprintf("❌ Произошла ошибка: %v", err)}
}

// guidanceFor — подсказка, когда тип сообщения не подходит состоянию.
func guidanceFor(state session.State, kind Kind) Reply {
	switch {
	case kind == KindPhoto && state == session.Idle:
		return Reply{Text: photoFirstText, Menu: true}
	case kind == KindPhoto && state == session.AwaitingText:
		return Reply{Text: textOnlyText, Menu: true}
	case kind == KindText && state == session.Idle:
		return Reply{Text: useMenuText, Menu: true}
	default:
		return Reply{Text: menuOnlyText, Menu: true}
	}
}
