package detect

import (
	"regexp"
	"strings"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

const (
	// PrefixSize is the byte range requested by the partial probe
	PrefixSize = 8 * 1024
	// TailSize is the trailing window checked for an export list
	TailSize = 4 * 1024
)

var (
	// System.register( at the very start, after comments and string directives
	legacyPreamble = regexp.MustCompile(`\A(?:\s+|//[^\n]*|/\*(?s:.*?)\*/|"[^"\n]*"\s*;?|'[^'\n]*'\s*;?)*System\s*\.\s*register\s*\(`)

	// leading import/export statement after the same preamble
	leadingModule = regexp.MustCompile(`\A(?:\s+|//[^\n]*|/\*(?s:.*?)\*/|"[^"\n]*"\s*;?|'[^'\n]*'\s*;?)*(?:import\s*(?:[\w$*{]|["'])|export\s*[\w$*{])`)

	// statement-level import/export anywhere in the source
	moduleLine = regexp.MustCompile(`(?m)^[ \t]*(?:import\s*(?:[\w$*{]|["'])|export\s*(?:default\b|const\b|let\b|var\b|function\b|class\b|async\b|\{|\*))`)

	exportTail = regexp.MustCompile(`\bexport\s*\{`)

	umdTokens = []string{"typeof exports", "typeof define", "define.amd"}
)

// IsLegacy reports whether src opens with a System.register call
func IsLegacy(src string) bool {
	return legacyPreamble.MatchString(src)
}

// IsUMD reports whether all universal-module-definition tokens occur in src
func IsUMD(src string) bool {
	for _, tok := range umdTokens {
		if !strings.Contains(src, tok) {
			return false
		}
	}
	return true
}

// IsModule reports whether src uses ECMAScript module syntax
func IsModule(src string) bool {
	return leadingModule.MatchString(head(src)) ||
		exportTail.MatchString(tail(src)) ||
		moduleLine.MatchString(src)
}

// ClassifyPrefix runs the cheap checks on a partial body. FormatUnknown
// means inconclusive.
func ClassifyPrefix(prefix string) types.ModuleFormat {
	switch {
	case IsLegacy(prefix):
		return types.FormatLegacyRegistration
	case IsUMD(prefix):
		return types.FormatGlobalScript
	default:
		return types.FormatUnknown
	}
}

// ClassifyFull runs the three-way check on a complete body
func ClassifyFull(body string) types.ModuleFormat {
	switch {
	case IsLegacy(head(body)):
		return types.FormatLegacyRegistration
	case IsUMD(body):
		return types.FormatGlobalScript
	case IsModule(body):
		return types.FormatNative
	default:
		return types.FormatUnknown
	}
}

func head(s string) string {
	if len(s) > PrefixSize {
		return s[:PrefixSize]
	}
	return s
}

func tail(s string) string {
	if len(s) > TailSize {
		return s[len(s)-TailSize:]
	}
	return s
}
