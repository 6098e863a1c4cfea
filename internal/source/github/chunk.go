package github

import (
	"path/filepath"
	"regexp"
	"strings"
)

// section is a semantically coherent slice of a repository file.
type section struct {
	Content string
	Symbol  string
	Kind    string
}

// maxSectionLines caps how many lines are packed into one section before a
// new one starts at the next declaration boundary.
const maxSectionLines = 300

var languageByExt = map[string]string{
	".go":       "go",
	".py":       "python",
	".js":       "javascript",
	".jsx":      "javascript",
	".ts":       "typescript",
	".tsx":      "typescript",
	".java":     "java",
	".md":       "markdown",
	".markdown": "markdown",
	".txt":      "text",
	".json":     "config",
	".yaml":     "config",
	".yml":      "config",
	".toml":     "config",
}

// declRes matches top-level declaration starts per language. Sections are cut
// only at these boundaries so a function never straddles two sections.
var declRes = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^(func|type|var|const)\s+(\w+)?`),
	"python":     regexp.MustCompile(`^(def|class)\s+(\w+)`),
	"javascript": regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?(function|class|const)\s+(\w+)`),
	"typescript": regexp.MustCompile(`^(?:export\s+)?(?:async\s+)?(function|class|interface|const)\s+(\w+)`),
	"java":       regexp.MustCompile(`^\s*(?:public|protected|private)\s.*\b(class|interface|enum|\w+\s*\()`),
}

var headingRe = regexp.MustCompile(`^#{1,3}\s+`)

// language maps a file path onto a coarse language name, or "" when the
// extension is not recognized.
func language(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// splitSections cuts a file into sections. Markdown splits at headings, code
// splits at declaration boundaries once a section grows past maxSectionLines,
// and everything else stays whole.
func splitSections(path, content string) []section {
	lang := language(path)
	switch lang {
	case "markdown":
		return splitMarkdown(content)
	case "go", "python", "javascript", "typescript", "java":
		return splitCode(content, lang)
	default:
		return []section{{Content: content, Kind: "file"}}
	}
}

// splitMarkdown cuts at top-level headings. The heading line stays with the
// section it opens.
func splitMarkdown(content string) []section {
	lines := strings.Split(content, "\n")
	var out []section
	var buf []string
	symbol := ""

	flush := func() {
		text := strings.TrimRight(strings.Join(buf, "\n"), "\n")
		if strings.TrimSpace(text) != "" {
			out = append(out, section{Content: text, Symbol: symbol, Kind: "doc"})
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		if headingRe.MatchString(line) && len(buf) > 0 {
			flush()
			symbol = strings.TrimSpace(headingRe.ReplaceAllString(line, ""))
		} else if headingRe.MatchString(line) {
			symbol = strings.TrimSpace(headingRe.ReplaceAllString(line, ""))
		}
		buf = append(buf, line)
	}
	flush()

	if len(out) == 0 {
		return []section{{Content: content, Kind: "doc"}}
	}
	return out
}

// splitCode packs declaration blocks into sections of at most maxSectionLines
// lines. A single oversized declaration stays whole.
func splitCode(content, lang string) []section {
	re := declRes[lang]
	lines := strings.Split(content, "\n")

	var out []section
	var buf []string
	symbol := ""

	flush := func() {
		text := strings.TrimRight(strings.Join(buf, "\n"), "\n")
		if strings.TrimSpace(text) != "" {
			out = append(out, section{Content: text, Symbol: symbol, Kind: "code"})
		}
		buf = buf[:0]
		symbol = ""
	}

	for _, line := range lines {
		m := re.FindStringSubmatch(line)
		if m != nil && len(buf) >= maxSectionLines {
			flush()
		}
		if m != nil && symbol == "" {
			symbol = lastNonEmpty(m[1:])
		}
		buf = append(buf, line)
	}
	flush()

	if len(out) == 0 {
		return []section{{Content: content, Kind: "code"}}
	}
	return out
}

func lastNonEmpty(groups []string) string {
	for i := len(groups) - 1; i >= 0; i-- {
		if groups[i] != "" {
			return strings.TrimSpace(groups[i])
		}
	}
	return ""
}
