package ocr

// Language is the language selector of a request. The set is closed:
// ParseLanguage never yields anything but the two values below.
type Language string

const (
	LanguageRussian Language = "ru"
	LanguageEnglish Language = "en"
)

// DefaultLanguage is used when a request carries no lang parameter.
const DefaultLanguage = LanguageRussian

// ParseLanguage maps a raw selector onto a Language. "ru" and "Russian" pick
// Russian; everything else (including "", "en" and unknown codes) falls back
// to English.
func ParseLanguage(s string) Language {
	switch s {
	case "ru", "Russian":
		return LanguageRussian
	default:
		return LanguageEnglish
	}
}

func (l Language) Variant() Variant {
	if l == LanguageRussian {
		return VariantBilingual
	}
	return VariantEnglish
}

// Variant identifies one of the two model handles.
type Variant int

const (
	VariantEnglish Variant = iota
	VariantBilingual
)

// Languages returns Tesseract language codes loaded into the handle.
func (v Variant) Languages() []string {
	if v == VariantBilingual {
		return []string{"eng", "rus"}
	}
	return []string{"eng"}
}

func (v Variant) String() string {
	if v == VariantBilingual {
		return "model_ru_en"
	}
	return "model_en"
}

// VariantForSelector mirrors ParseLanguage for provisioning selectors.
func VariantForSelector(sel string) Variant {
	return ParseLanguage(sel).Variant()
}
