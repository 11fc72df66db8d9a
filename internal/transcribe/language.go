package transcribe

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// NormalizeLanguage canonicalizes a language hint to its ISO 639-1 base
// ("en-US" -> "en"). "auto" and unparseable hints fall back to def.
func NormalizeLanguage(value, def string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "auto") {
		if def == "" || strings.EqualFold(def, "auto") {
			return ""
		}
		return NormalizeLanguage(def, "")
	}
	tag, err := language.Parse(value)
	if err != nil {
		if def == "" {
			return ""
		}
		return NormalizeLanguage(def, "")
	}
	base, _ := tag.Base()
	return base.String()
}

// DetectLanguage classifies the transcript text, returning "" when the
// detector is not confident.
func DetectLanguage(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
		b.WriteByte(' ')
		if b.Len() > 4096 {
			break
		}
	}
	info := whatlanggo.Detect(b.String())
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
