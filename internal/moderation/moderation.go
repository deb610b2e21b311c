// Package moderation содержит фильтр запрещенных слов для текста постов.
package moderation

import "strings"

// DefaultWords - список запрещенных слов, если другой не настроен.
var DefaultWords = []string{"ёж"}

// Filter сверяет текст со списком запрещенных слов без учета регистра.
type Filter struct {
	words []string
}

// New создает Filter. Пустые слова отбрасываются, а без слов вообще
// используется DefaultWords.
func New(words ...string) *Filter {
	f := &Filter{}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			f.words = append(f.words, w)
		}
	}
	if len(f.words) == 0 {
		for _, w := range DefaultWords {
			f.words = append(f.words, strings.ToLower(w))
		}
	}
	return f
}

// ContainsForbiddenWord сообщает, входит ли в text какое-либо запрещенное
// слово как подстрока.
func (f *Filter) ContainsForbiddenWord(text string) bool {
	lowered := strings.ToLower(text)
	for _, w := range f.words {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}

// Words возвращает действующий список слов.
func (f *Filter) Words() []string {
	return append([]string(nil), f.words...)
}

var defaultFilter = New()

// ContainsForbiddenWord проверяет text по DefaultWords.
func ContainsForbiddenWord(text string) bool {
	return defaultFilter.ContainsForbiddenWord(text)
}
