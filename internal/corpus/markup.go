package corpus

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extract returns the title and plain-text body of a document, choosing the
// markup dialect by file extension. An empty title means the document has
// none and the caller should pick one.
func Extract(ext, text string) (title, body string) {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return extractMarkdown(text)
	case ".rst", ".rest":
		return extractRST(text)
	case ".html", ".htm":
		return extractHTML(text)
	default:
		return "", text
	}
}

var (
	mdFrontMatter = regexp.MustCompile(`(?s)\A---\n.*?\n---\n`)
	mdATXHeading  = regexp.MustCompile(`^#{1,6}\s+`)
	mdFence       = regexp.MustCompile("^\\s*(```|~~~)")
	mdImage       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink        = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdEmphasis    = regexp.MustCompile("[*`~]+")
	htmlTag       = regexp.MustCompile(`<[^>]+>`)

	rstRole      = regexp.MustCompile(":[\\w:.-]+:`([^`]*)`")
	rstLinkText  = regexp.MustCompile("`([^`<]*?)\\s*<[^>]*>`_+")
	rstDirective = regexp.MustCompile(`^\s*\.\.\s+[\w:-]+::\s*`)
	rstComment   = regexp.MustCompile(`^\s*\.\.(\s|$)`)
	rstInline    = regexp.MustCompile("(`+|\\*+)")
)

func extractMarkdown(text string) (string, string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = mdFrontMatter.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")

	title := ""
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if title == "" {
			if strings.HasPrefix(line, "# ") {
				title = cleanMarkdown(strings.TrimPrefix(line, "# "))
				continue
			}
			// Setext heading: text underlined with '='.
			if i+1 < len(lines) && strings.TrimSpace(line) != "" && isAdornment(lines[i+1], '=') {
				title = cleanMarkdown(line)
				i++
				continue
			}
		}
		if mdFence.MatchString(line) {
			continue
		}
		out = append(out, cleanMarkdown(mdATXHeading.ReplaceAllString(line, "")))
	}
	return strings.TrimSpace(title), strings.TrimSpace(strings.Join(out, "\n"))
}

func cleanMarkdown(line string) string {
	line = strings.TrimLeft(line, "> ")
	line = mdImage.ReplaceAllString(line, "$1")
	line = mdLink.ReplaceAllString(line, "$1")
	line = htmlTag.ReplaceAllString(line, " ")
	line = mdEmphasis.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func extractRST(text string) (string, string) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	title := ""
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if adornmentChar(line) != 0 {
			continue
		}
		if i+1 < len(lines) && strings.TrimSpace(line) != "" {
			if c := adornmentChar(lines[i+1]); c != 0 && len(strings.TrimSpace(lines[i+1])) >= len(strings.TrimSpace(line)) {
				if title == "" {
					title = cleanRST(line)
				} else {
					out = append(out, cleanRST(line))
				}
				i++
				continue
			}
		}
		if rstComment.MatchString(line) && !rstDirective.MatchString(line) {
			continue
		}
		out = append(out, cleanRST(rstDirective.ReplaceAllString(line, "")))
	}
	return title, strings.TrimSpace(strings.Join(out, "\n"))
}

func cleanRST(line string) string {
	line = rstLinkText.ReplaceAllString(line, "$1")
	line = rstRole.ReplaceAllString(line, "$1")
	line = rstInline.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// adornmentChar returns the punctuation character repeated across line, or
// 0 if line is not a section adornment.
func adornmentChar(line string) byte {
	line = strings.TrimSpace(line)
	if len(line) < 3 {
		return 0
	}
	c := line[0]
	if !strings.ContainsRune("=-~^\"'`#*+_:.", rune(c)) {
		return 0
	}
	if !isAdornment(line, c) {
		return 0
	}
	return c
}

func isAdornment(line string, c byte) bool {
	line = strings.TrimSpace(line)
	if len(line) < 3 {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] != c {
			return false
		}
	}
	return true
}

// extractHTML takes the title from <title>, falling back to the first <h1>,
// and the body from visible text outside <head>, <script> and <style>.
func extractHTML(text string) (string, string) {
	z := html.NewTokenizer(strings.NewReader(text))
	var (
		title, h1 strings.Builder
		body      strings.Builder
		skip      int
		inTitle   bool
		inH1      bool
		sawH1     bool
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return "", text
			}
			t := strings.TrimSpace(collapse(title.String()))
			if t == "" {
				t = strings.TrimSpace(collapse(h1.String()))
			}
			return t, strings.TrimSpace(collapse(body.String()))
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			start := tt == html.StartTagToken
			switch atom.Lookup(name) {
			case atom.Script, atom.Style, atom.Head:
				if start {
					skip++
				} else if skip > 0 {
					skip--
				}
			case atom.Title:
				inTitle = start
			case atom.H1:
				inH1 = start && !sawH1
				if !start {
					sawH1 = sawH1 || h1.Len() > 0
				}
			}
			body.WriteByte(' ')
		case html.TextToken:
			raw := string(z.Text())
			switch {
			case inTitle:
				title.WriteString(raw)
			case skip > 0:
			default:
				if inH1 {
					h1.WriteString(raw)
				}
				body.WriteString(raw)
			}
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
