package gemini

import (
	"strings"
	"unicode"
)

const vietnameseChars = "àáạảãâầấậẩẫăằắặẳẵèéẹẻẽêềếệểễìíịỉĩòóọỏõôồốộổỗơờớợởỡùúụủũưừứựửữỳýỵỷỹđ"

var vietnameseWords = []string{
	"là", "của", "và", "với", "cho", "được", "trong", "về", "này", "đó",
	"như", "theo", "từ", "đến", "có", "không", "một", "các", "đã", "sẽ",
}

// detectLanguage picks the answer language from the question. Vietnamese
// is detected by diacritic density or common function words; everything
// else answers in the question's own language.
func detectLanguage(text string) string {
	lower := strings.ToLower(text)

	viCount := 0
	letters := 0
	for _, r := range lower {
		if unicode.IsLetter(r) {
			letters++
		}
		if strings.ContainsRune(vietnameseChars, r) {
			viCount++
		}
	}
	if letters > 0 && (float64(viCount)/float64(letters) > 0.05 || viCount > 3) {
		return "vi"
	}

	wordHits := 0
	for _, word := range vietnameseWords {
		if strings.Contains(lower, word) {
			wordHits++
		}
	}
	if wordHits >= 2 {
		return "vi"
	}
	return "en"
}

func languageInstruction(question string) string {
	if detectLanguage(question) == "vi" {
		return "Trả lời bằng tiếng Việt một cách chi tiết, đầy đủ và rõ ràng."
	}
	return "Answer in the same language as the question, with a detailed and well-structured response."
}
