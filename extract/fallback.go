package extract

import (
	"regexp"
	"strings"

	"webepub/content"
	"webepub/content/text"
)

var blankLine = regexp.MustCompile(`\n\s*\n`)

// fallbackBlocks splits raw text on blank lines, text must not be normalized
// yet or there will be nothing to split on.
func fallbackBlocks(raw string) []content.Block {
	var blocks []content.Block
	for _, chunk := range blankLine.Split(raw, -1) {
		if b := content.Paragraph(chunk); !b.Empty() {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) > 0 {
		return blocks
	}
	if trimmed := strings.TrimSpace(raw); !text.IsBlank(trimmed) {
		return []content.Block{content.Paragraph(trimmed)}
	}
	return nil
}
