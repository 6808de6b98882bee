package imagegen

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeInstruction prepares user text for transmission. Content is kept
// verbatim apart from Unicode NFC composition and CRLF line endings.
func NormalizeInstruction(instruction string) string {
	instruction = strings.ReplaceAll(instruction, "\r\n", "\n")
	return norm.NFC.String(instruction)
}
