package cloner

import (
	"regexp"

	"github.com/telemgr/telemgr/internal/config"
)

// Transform applies the configured word filters and signature to
// message text. Filters are case-insensitive literal substring
// replacements applied in list order; the replacement is inserted
// verbatim. The signature is only appended to non-empty text.
func Transform(text string, cfg config.Config) string {
	if cfg.FilterWords {
		for _, f := range cfg.Filters {
			re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(f.From))
			text = re.ReplaceAllLiteralString(text, f.To)
		}
	}

	if cfg.AddSignature && cfg.Signature != "" && text != "" {
		text += "\n\n" + cfg.Signature
	}

	return text
}
