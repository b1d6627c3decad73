package util

import "strings"

// IsBlank — в ответе нет текста: только пробелы или пустой блок ```.
func IsBlank(s string) bool {
	return unwrapFence(s) == ""
}

// unwrapFence снимает ``` вокруг всего ответа. Блоки внутри текста не трогаются.
func unwrapFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := s[3 : len(s)-3]
	if strings.Contains(inner, "```") {
		return s
	}
	// первая строка: тег языка (```markdown, ```text)
	if i := strings.IndexByte(inner, '\n'); i >= 0 && !strings.ContainsAny(inner[:i], " \t") {
		inner = inner[i+1:]
	}
	return strings.TrimSpace(inner)
}
