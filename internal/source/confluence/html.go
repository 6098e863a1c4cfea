package confluence

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style.*?</style>`)
	blankRunsRe  = regexp.MustCompile(`\n{3,}`)
	trailingWsRe = regexp.MustCompile(`[ \t]+\n`)
)

// storageToText converts Confluence storage-format HTML into Markdown text
// suitable for indexing.
func storageToText(html string) (string, error) {
	cleaned := scriptRe.ReplaceAllString(html, "")
	cleaned = styleRe.ReplaceAllString(cleaned, "")

	md, err := htmltomarkdown.ConvertString(cleaned)
	if err != nil {
		return "", err
	}

	md = strings.ReplaceAll(md, " ", " ")
	md = trailingWsRe.ReplaceAllString(md, "\n")
	md = blankRunsRe.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md), nil
}
