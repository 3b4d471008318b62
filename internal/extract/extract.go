package extract

import (
	"github.com/bombeindex/bombe/internal/parser"
	"github.com/bombeindex/bombe/internal/types"
)

// Extractor produces symbols and imports for one parsed file.
type Extractor interface {
	Extract(unit parser.ParsedUnit) (types.ExtractResult, error)
}

// ForLanguage returns the Extractor for lang.
func ForLanguage(lang types.Language) Extractor {
	switch lang {
	case types.LanguagePython:
		return PythonExtractor{}
	case types.LanguageJava:
		return JavaExtractor{}
	case types.LanguageTypeScript:
		return TypeScriptExtractor{}
	case types.LanguageGo:
		return GoExtractor{}
	default:
		return noopExtractor{}
	}
}

type noopExtractor struct{}

func (noopExtractor) Extract(parser.ParsedUnit) (types.ExtractResult, error) {
	return types.ExtractResult{}, nil
}

// isAllCaps reports whether name looks like a CONSTANT_NAME.
func isAllCaps(name string) bool {
	if name == "" {
		return false
	}
	sawLetter := false
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			sawLetter = true
		case r == '_' || (r >= '0' && r <= '9'):
			// ok
		default:
			return false
		}
	}
	return sawLetter
}
