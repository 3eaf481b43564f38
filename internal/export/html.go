// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromaHTML "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/routerchat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to HTML format with embedded CSS.
// Fenced code blocks inside message content get chroma syntax highlighting.
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
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	// Validate conversation data
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}
	if conv.CreatedAt.IsZero() {
		return nil, fmt.Errorf("conversation has invalid creation timestamp")
	}

	var sb strings.Builder

	// HTML header
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(conv.Name)))
	sb.WriteString("    <meta name=\"generator\" content=\"routerchat\">\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"date\" content=\"%s\">\n", conv.CreatedAt.Format(time.RFC3339)))

	// Embedded CSS
	sb.WriteString(e.getCSS())

	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", e.options.Theme))

	// Container
	sb.WriteString("    <div class=\"container\">\n")

	// Header with metadata
	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(conv))
	}

	// Conversation messages
	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range conv.Messages {
		sb.WriteString(e.renderMessage(msg))
	}
	sb.WriteString("        </main>\n")

	// Footer
	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>routerchat</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")

	sb.WriteString("    </div>\n")

	// Theme toggle script
	sb.WriteString(e.getScript())

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

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

// renderHeader renders the header section with metadata.
func (e *HTMLExporter) renderHeader(conv *model.Conversation) string {
	var sb strings.Builder

	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(conv.Name)))
	sb.WriteString("            <div class=\"metadata\">\n")
	if modelID := conv.LastModelID(); modelID != "" {
		sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n",
			html.EscapeString(model.ModelDisplayName(modelID))))
	}
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(conv.CreatedAt)))
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(conv.Messages)))
	sb.WriteString("                <button class=\"theme-toggle\" onclick=\"toggleTheme()\" title=\"Toggle theme\">[Theme]</button>\n")
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")

	return sb.String()
}

// renderMessage renders a single message.
func (e *HTMLExporter) renderMessage(msg *model.Message) string {
	var sb strings.Builder

	roleClass := strings.ToLower(msg.Role.String())
	sb.WriteString(fmt.Sprintf("            <div class=\"message %s-message\">\n", roleClass))

	// Message header
	sb.WriteString("                <div class=\"message-header\">\n")
	sb.WriteString(fmt.Sprintf("                    <span class=\"role-label\">%s</span>\n", e.getRoleLabel(msg.Role)))
	if e.options.IncludeTimestamps {
		sb.WriteString(fmt.Sprintf("                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.CreatedAt)))
	}
	sb.WriteString("                </div>\n")

	// Message content
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(e.formatContent(msg.Content))
	sb.WriteString("                </div>\n")

	// Model attribution for AI messages
	if msg.Role == model.RoleAI && e.options.IncludeMetadata && msg.ModelID != "" {
		sb.WriteString("                <div class=\"message-stats\">\n")
		sb.WriteString(fmt.Sprintf("                    <span class=\"stat\">Model: %s</span>\n", html.EscapeString(msg.ModelID)))
		sb.WriteString("                </div>\n")
	}

	sb.WriteString("            </div>\n")

	return sb.String()
}

// getRoleLabel returns a display label for the message role.
func (e *HTMLExporter) getRoleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "You"
	case model.RoleAI:
		return "Assistant"
	default:
		return html.EscapeString(role.String())
	}
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

// formatContent converts message text to HTML. Text outside fenced code
// blocks is escaped and wrapped in paragraphs; fenced blocks get chroma
// syntax highlighting with inline styles.
func (e *HTMLExporter) formatContent(content string) string {
	var sb strings.Builder

	lines := strings.Split(content, "\n")
	var inCodeBlock bool
	var codeLines []string
	var language string
	var textLines []string

	flushText := func() {
		if len(textLines) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(textLines, "\n"))
		textLines = nil
		if text == "" {
			return
		}
		escaped := html.EscapeString(text)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		sb.WriteString("                    <p>")
		sb.WriteString(escaped)
		sb.WriteString("</p>\n")
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			if inCodeBlock {
				sb.WriteString(e.highlightBlock(strings.Join(codeLines, "\n"), language))
				codeLines = nil
				language = ""
				inCodeBlock = false
			} else {
				flushText()
				language = strings.TrimSpace(strings.TrimPrefix(line, "```"))
				inCodeBlock = true
			}
		} else if inCodeBlock {
			codeLines = append(codeLines, line)
		} else {
			textLines = append(textLines, line)
		}
	}

	// Handle unclosed code block
	if inCodeBlock && len(codeLines) > 0 {
		sb.WriteString(e.highlightBlock(strings.Join(codeLines, "\n"), language))
	}
	flushText()

	return sb.String()
}

// highlightBlock renders a code block with chroma inline-styled HTML.
func (e *HTMLExporter) highlightBlock(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(e.options.HighlightTheme)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := chromaHTML.New(chromaHTML.WithClasses(false))

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return e.plainBlock(code)
	}

	var buf strings.Builder
	buf.WriteString("                    <div class=\"code-block\">\n")
	if language != "" {
		buf.WriteString(fmt.Sprintf("                    <span class=\"code-lang\">%s</span>\n", html.EscapeString(language)))
	}
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return e.plainBlock(code)
	}
	buf.WriteString("\n                    </div>\n")
	return buf.String()
}

// plainBlock renders a code block without highlighting.
func (e *HTMLExporter) plainBlock(code string) string {
	return fmt.Sprintf("                    <div class=\"code-block\"><pre><code>%s</code></pre></div>\n",
		html.EscapeString(code))
}

// =============================================================================
// EMBEDDED ASSETS
// =============================================================================

// getCSS returns the embedded stylesheet.
func (e *HTMLExporter) getCSS() string {
	return `    <style>
        :root {
            --bg: #ffffff;
            --fg: #1a1a2e;
            --surface: #f4f4f8;
            --border: #d8d8e0;
            --accent: #4a6fd4;
            --muted: #6a6a7a;
        }
        .dark-theme {
            --bg: #16161e;
            --fg: #e4e4ec;
            --surface: #1f1f2a;
            --border: #33334a;
            --accent: #7aa2f7;
            --muted: #8a8a9a;
        }
        * { box-sizing: border-box; }
        body {
            margin: 0;
            background: var(--bg);
            color: var(--fg);
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            line-height: 1.6;
        }
        .container {
            max-width: 860px;
            margin: 0 auto;
            padding: 2rem 1.5rem;
        }
        .header h1 {
            margin: 0 0 0.5rem;
            font-size: 1.6rem;
        }
        .metadata {
            display: flex;
            flex-wrap: wrap;
            gap: 1rem;
            align-items: center;
            color: var(--muted);
            font-size: 0.85rem;
            padding-bottom: 1rem;
            border-bottom: 1px solid var(--border);
        }
        .theme-toggle {
            margin-left: auto;
            background: var(--surface);
            color: var(--fg);
            border: 1px solid var(--border);
            border-radius: 4px;
            padding: 0.2rem 0.6rem;
            cursor: pointer;
            font-size: 0.8rem;
        }
        .conversation { margin-top: 1.5rem; }
        .message {
            margin-bottom: 1.25rem;
            padding: 1rem 1.25rem;
            border-radius: 8px;
            background: var(--surface);
            border: 1px solid var(--border);
        }
        .user-message { border-left: 3px solid var(--accent); }
        .ai-message { border-left: 3px solid var(--muted); }
        .message-header {
            display: flex;
            justify-content: space-between;
            margin-bottom: 0.5rem;
            font-size: 0.85rem;
        }
        .role-label { font-weight: 600; color: var(--accent); }
        .timestamp { color: var(--muted); }
        .message-content p { margin: 0 0 0.5rem; white-space: pre-wrap; }
        .message-stats {
            margin-top: 0.5rem;
            font-size: 0.75rem;
            color: var(--muted);
        }
        .code-block {
            position: relative;
            margin: 0.75rem 0;
            border-radius: 6px;
            overflow-x: auto;
        }
        .code-block pre {
            margin: 0;
            padding: 0.75rem 1rem;
            border-radius: 6px;
        }
        .code-lang {
            position: absolute;
            top: 0.3rem;
            right: 0.6rem;
            font-size: 0.7rem;
            color: var(--muted);
            text-transform: uppercase;
        }
        .footer {
            margin-top: 2rem;
            padding-top: 1rem;
            border-top: 1px solid var(--border);
            color: var(--muted);
            font-size: 0.8rem;
            text-align: center;
        }
    </style>
`
}

// getScript returns the embedded theme toggle script.
func (e *HTMLExporter) getScript() string {
	return `    <script>
        function toggleTheme() {
            document.body.classList.toggle('dark-theme');
            document.body.classList.toggle('light-theme');
        }
    </script>
`
}
