package assistant

import (
	"errors"
	"fmt"

	"study-bot/api/internal/llm"
	"study-bot/api/internal/session"
)

var ErrUnsupportedPayload = errors.New("payload kind not supported by mode")

type PayloadKind int

const (
	TextPayload PayloadKind = iota
	ImagePayload
)

func (k PayloadKind) String() string {
	if k == ImagePayload {
		return "image"
	}
	return "text"
}

// Payload — текст или картинка от пользователя.
type Payload struct {
	Kind  PayloadKind
	Text  string
	Image []byte
}

// Правила оформления ответа. Модель должна писать формулы обычным текстом:
// Telegram не рендерит LaTeX.
const (
	plainMath = "Не используй LaTeX и разметку формул: никаких $$, \\( и \\). " +
		"Математику пиши обычным текстом, например: 3/4, x^2, sqrt(5)."

	solveRules = "Дай только окончательный ответ и краткое решение. " + plainMath

	explainRules = "Объясни решение по шагам, подробно и понятно для школьника, используй простые аналогии. " + plainMath

	solveTextPrompt    = "Реши эту задачу. " + solveRules + "\n\nЗадача: %s"
	solveImagePrompt   = "Реши задачу на изображении. " + solveRules
	explainTextPrompt  = "Реши эту задачу и подробно объясни каждый шаг решения. " + explainRules + "\n\nЗадача: %s"
	explainImagePrompt = "Реши задачу на изображении и подробно объясни каждый шаг решения. " + explainRules

	paraphrasePrompt = "Перефразируй этот текст, сохраняя смысл, но используя другие слова: %s"
	shortenPrompt    = "Сократи этот текст, сохраняя основную мысль: %s"

	fallbackTextPrompt  = "Реши эту задачу: %s"
	fallbackImagePrompt = "Что изображено на этой картинке? Если это задача - реши её."
)

// BuildPrompt собирает текст запроса к модели. Функция чистая: одинаковые
// входы дают одинаковый результат. Для картинки текст пользователя не
// добавляется, подписью служит сама инструкция.
func BuildPrompt(mode session.Mode, kind PayloadKind, text string) (string, error) {
	switch mode {
	case session.Solve:
		if kind == ImagePayload {
			return solveImagePrompt, nil
		}
		return fmt.Sprintf(solveTextPrompt, text), nil
	case session.Explain:
		if kind == ImagePayload {
			return explainImagePrompt, nil
		}
		return fmt.Sprintf(explainTextPrompt, text), nil
	case session.Paraphrase, session.Shorten:
		if kind == ImagePayload {
			return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPayload, mode, kind)
		}
		if mode == session.Paraphrase {
			return fmt.Sprintf(paraphrasePrompt, text), nil
		}
		return fmt.Sprintf(shortenPrompt, text), nil
	default:
		// сюда не попадаем при соблюдённом инварианте сессии
		if kind == ImagePayload {
			return fallbackImagePrompt, nil
		}
		return fmt.Sprintf(fallbackTextPrompt, text), nil
	}
}

// NewRequest превращает режим и ввод пользователя в запрос к Gateway.
func NewRequest(mode session.Mode, p Payload) (llm.Request, error) {
	prompt, err := BuildPrompt(mode, p.Kind, p.Text)
	if err != nil {
		return llm.Request{}, err
	}
	if p.Kind == ImagePayload {
		return llm.Request{Capability: llm.VisionCompletion, Prompt: prompt, Image: p.Image}, nil
	}
	return llm.Request{Capability: llm.TextCompletion, Prompt: prompt}, nil
}
