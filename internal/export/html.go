// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/thinkchat/internal/model"
	"github.com/jeranaias/thinkchat/internal/storage"
)

var (
	// fenceRegex matches a fenced code block; the language is the first word
	// of the info string.
	fenceRegex = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[^\n]*\n(.*?)```")

	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a standalone HTML page.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(t storage.Transcript) ([]byte, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"thinkchat\">\n")
	if !t.Created.IsZero() {
		fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", t.Created.Format(time.RFC3339))
	}
	sb.WriteString(stylesheet)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", e.theme())
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(t))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range t.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>thinkchat</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString(themeScript)
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) theme() string {
	if e.options.Theme == "light" {
		return "light"
	}
	return "dark"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

// renderHeader renders the header section with metadata.
func (e *HTMLExporter) renderHeader(t storage.Transcript) string {
	var sb strings.Builder

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(t.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(t.Model))
	if !t.Created.IsZero() {
		fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(t.Created))
	}
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(t.Messages))
	sb.WriteString("                <button class=\"theme-toggle\" onclick=\"toggleTheme()\" title=\"Toggle theme\">[Theme]</button>\n")
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")

	return sb.String()
}

// renderMessage renders a single message.
func (e *HTMLExporter) renderMessage(msg *model.Message) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "            <div class=\"message %s-message\">\n", html.EscapeString(msg.Role.String()))

	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"role-label\">%s</span>\n", html.EscapeString(roleLabel(msg.Role)))
	if e.options.IncludeTimestamps {
		fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp))
	}
	sb.WriteString("                </div>\n")

	if e.options.IncludeReasoning {
		if text, open, ok := reasoningOf(msg); ok {
			summary := msg.ReasoningTag().String()
			if open {
				summary += " (unfinished)"
			}
			fmt.Fprintf(&sb, "                <details class=\"reasoning\"><summary>%s</summary>\n", html.EscapeString(summary))
			sb.WriteString("                <div class=\"reasoning-content\">\n")
			sb.WriteString(e.formatContent(text))
			sb.WriteString("                </div></details>\n")
		}
	}

	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(e.formatContent(bodyOf(msg)))
	sb.WriteString("                </div>\n")

	if e.options.IncludeMetadata {
		if stats := msg.FormatStats(); stats != "" {
			fmt.Fprintf(&sb, "                <div class=\"message-stats\"><span class=\"stat\">%s</span></div>\n",
				html.EscapeString(stats))
		}
	}

	sb.WriteString("            </div>\n")
	return sb.String()
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// formatContent turns message text into HTML: fenced code is highlighted,
// everything else becomes escaped paragraphs.
func (e *HTMLExporter) formatContent(content string) string {
	var sb strings.Builder
	last := 0
	for _, m := range fenceRegex.FindAllStringSubmatchIndex(content, -1) {
		sb.WriteString(formatProse(content[last:m[0]]))
		sb.WriteString(e.renderCode(content[m[2]:m[3]], content[m[4]:m[5]]))
		last = m[1]
	}
	sb.WriteString(formatProse(content[last:]))
	return sb.String()
}

// formatProse escapes text and splits it into paragraphs on blank lines.
func formatProse(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var sb strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		para = html.EscapeString(para)
		para = inlineCodeRegex.ReplaceAllString(para, "<code class=\"inline-code\">$1</code>")
		para = strings.ReplaceAll(para, "\n", "<br>\n")
		sb.WriteString("<p>" + para + "</p>\n")
	}
	return sb.String()
}

// renderCode highlights one code block with chroma, using inline styles so
// the page needs no stylesheet for it.
func (e *HTMLExporter) renderCode(lang, code string) string {
	label := ""
	if lang != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}

	highlighted, err := highlightHTML(code, lang, e.chromaStyle())
	if err != nil {
		highlighted = "<pre><code>" + html.EscapeString(code) + "</code></pre>"
	}
	return "<div class=\"code-block\">" + label + highlighted + "</div>\n"
}

func (e *HTMLExporter) chromaStyle() string {
	if e.theme() == "light" {
		return "github"
	}
	return "monokai"
}

func highlightHTML(code, language, styleName string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(styleName)
	if style == nil {
		style = chromaStyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// ASSETS
// =============================================================================

// stylesheet is the page CSS. Role colours follow the terminal palette.
const stylesheet = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body.dark-theme {
            --bg: #16161e; --panel: #1f2029; --raised: #2a2c3a; --line: #3b3e52;
            --fg: #d4d6e4; --dim: #8a8ea8; --code: #13131a;
            --user: #5fafff; --assistant: #5fd787; --system: #ffd75f; --tool: #5fd7d7; --think: #af87ff;
        }
        body.light-theme {
            --bg: #fafafa; --panel: #ffffff; --raised: #f0f1f4; --line: #d9dbe3;
            --fg: #1e2129; --dim: #6b7080; --code: #f4f5f7;
            --user: #005fd7; --assistant: #008700; --system: #af8700; --tool: #008787; --think: #8700af;
        }
        body {
            font: 16px/1.6 system-ui, -apple-system, "Segoe UI", sans-serif;
            color: var(--fg); background: var(--bg); padding: 24px 12px;
        }
        code, pre, .timestamp, .reasoning summary { font-family: ui-monospace, "JetBrains Mono", Menlo, monospace; }
        .container { max-width: 880px; margin: 0 auto; background: var(--panel); border: 1px solid var(--line); border-radius: 10px; }
        .header { padding: 24px 28px; border-bottom: 1px solid var(--line); }
        .header h1 { font-size: 24px; margin-bottom: 10px; }
        .metadata { display: flex; flex-wrap: wrap; align-items: center; gap: 14px; font-size: 14px; color: var(--dim); }
        .theme-toggle { margin-left: auto; background: var(--raised); border: 1px solid var(--line); border-radius: 6px; padding: 4px 10px; cursor: pointer; }
        .conversation { padding: 20px 28px; }
        .message { margin-bottom: 20px; padding: 16px 18px; border-left: 3px solid var(--line); background: var(--raised); border-radius: 6px; }
        .user-message { border-left-color: var(--user); }
        .assistant-message { border-left-color: var(--assistant); background: var(--panel); }
        .system-message { border-left-color: var(--system); }
        .tool-message { border-left-color: var(--tool); }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 10px; font-size: 14px; }
        .role-label { font-weight: 600; }
        .timestamp { font-size: 12px; color: var(--dim); }
        .message-content p { margin-bottom: 10px; }
        .message-content p:last-child { margin-bottom: 0; }
        .reasoning { margin-bottom: 12px; padding: 6px 12px; border-left: 2px solid var(--think); color: var(--dim); font-style: italic; }
        .reasoning summary { cursor: pointer; font-size: 13px; font-style: normal; color: var(--think); }
        .reasoning-content { margin-top: 6px; }
        .code-block { margin: 14px 0; border: 1px solid var(--line); border-radius: 6px; background: var(--code); overflow: hidden; }
        .code-lang { padding: 4px 12px; font-size: 12px; color: var(--dim); border-bottom: 1px solid var(--line); }
        .code-block pre { padding: 12px; overflow-x: auto; font-size: 14px; line-height: 1.45; }
        .inline-code { font-size: 14px; padding: 1px 5px; background: var(--code); border-radius: 4px; }
        .message-stats { margin-top: 10px; display: flex; flex-wrap: wrap; gap: 14px; font-size: 13px; color: var(--dim); }
        .footer { padding: 14px 28px; border-top: 1px solid var(--line); text-align: center; font-size: 13px; color: var(--dim); }
        @media print {
            .theme-toggle { display: none; }
            .message { page-break-inside: avoid; }
        }
    </style>
`

// themeScript flips between the two themes and remembers the choice.
const themeScript = `    <script>
        const themes = ['dark-theme', 'light-theme'];
        function setTheme(name) {
            document.body.classList.remove(...themes);
            document.body.classList.add(name);
            localStorage.setItem('thinkchat-theme', name);
        }
        function toggleTheme() {
            setTheme(document.body.classList.contains('dark-theme') ? 'light-theme' : 'dark-theme');
        }
        const saved = localStorage.getItem('thinkchat-theme');
        if (themes.includes(saved)) {
            setTheme(saved);
        }
    </script>
`
