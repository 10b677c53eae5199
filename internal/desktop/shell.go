package desktop

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// shellVariant maps a shell name to the parser dialect; ok is false for
// shells whose syntax the parser does not understand. zsh is among them:
// glob qualifiers, short loops and nested expansion flags are not bash.
func shellVariant(shell string) (syntax.LangVariant, bool) {
	switch filepath.Base(shell) {
	case "bash":
		return syntax.LangBash, true
	case "sh", "dash", "ash":
		return syntax.LangPOSIX, true
	case "mksh", "ksh":
		return syntax.LangMirBSDKorn, true
	default:
		return 0, false
	}
}

// ValidateCommand reports a syntax error in command for the given shell.
// Commands for unsupported shells are accepted as-is.
func ValidateCommand(command, shell string) error {
	variant, ok := shellVariant(shell)
	if !ok {
		return nil
	}

	parser := syntax.NewParser(syntax.Variant(variant))
	if _, err := parser.Parse(strings.NewReader(command), ""); err != nil {
		return fmt.Errorf("invalid %s syntax: %w", filepath.Base(shell), err)
	}
	return nil
}
