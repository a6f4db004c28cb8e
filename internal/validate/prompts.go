package validate

import "strings"

const fallbackLang = "en"

// Corrective prompts per field and language tag. Unrecognized tags fall back
// to English.
var correctivePrompts = map[string]map[string]string{
	"phone": {
		"en": "Could you share a valid 10-digit mobile number?",
		"hi": "कृपया सही 10 अंकों का मोबाइल नंबर बताइए।",
		"te": "దయచేసి సరైన 10 అంకెల మొబైల్ నంబర్ ఇవ్వండి.",
	},
	"grade": {
		"en": "Which class is the student in (1-12)?",
		"hi": "बच्चा किस कक्षा में पढ़ता है (1-12)?",
		"te": "విద్యార్థి ఏ తరగతి చదువుతున్నారు (1-12)?",
	},
	"mode": {
		"en": "Would you prefer online classes or a home tutor?",
		"hi": "आप ऑनलाइन क्लास चाहेंगे या होम ट्यूटर?",
		"te": "మీకు ఆన్‌లైన్ క్లాసులు కావాలా లేదా హోమ్ ట్యూటర్ కావాలా?",
	},
	"area": {
		"en": "Which area or locality should the tutor come to?",
		"hi": "ट्यूटर किस एरिया या इलाके में आए?",
		"te": "ట్యూటర్ ఏ ఏరియాకి రావాలి?",
	},
	"schedule": {
		"en": "What days and timings work best? For example, Mon-Fri 6-7pm.",
		"hi": "कौन से दिन और समय ठीक रहेंगे? जैसे सोम-शुक्र शाम 6-7 बजे।",
		"te": "ఏ రోజులు, ఏ సమయం అనుకూలం? ఉదా: సోమ-శుక్ర సాయంత్రం 6-7.",
	},
}

func promptFor(field, lang string) string {
	table, ok := correctivePrompts[field]
	if !ok {
		return "Sorry, could you say that again?"
	}
	if p, ok := table[normalizeLang(lang)]; ok {
		return p
	}
	return table[fallbackLang]
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	// "hi-IN" style tags collapse to their primary subtag.
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
