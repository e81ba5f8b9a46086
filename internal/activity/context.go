package activity

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ContextType identifies what kind of thing the user is looking at
type ContextType string

const (
	TypeApp      ContextType = "app"
	TypeWebsite  ContextType = "website"
	TypeFile     ContextType = "file"
	TypeBrowser  ContextType = "browser"
	TypeTerminal ContextType = "terminal"
	TypePDF      ContextType = "pdf"
)

// Context identifies what the user is doing right now. It is an immutable
// value object; consumers copy the fields they need.
type Context struct {
	AppName        string      `json:"app_name"`
	WindowTitle    string      `json:"window_title"`
	Type           ContextType `json:"context_type"`
	ID             string      `json:"context_id"`
	DetectedAt     time.Time   `json:"detected_at"`
	ReadingSection string      `json:"reading_section,omitempty"`
	PageContent    string      `json:"page_content,omitempty"`
}

// ContextID derives the stable identity key for a context. Two contexts with
// the same app and title are the same activity for session purposes.
func ContextID(appName, windowTitle string) string {
	title := []rune(windowTitle)
	if len(title) > 50 {
		title = title[:50]
	}
	return appName + "::" + string(title)
}

// New builds a Context, inferring type and deriving the ID.
func New(appName, windowTitle string) *Context {
	ctx := &Context{
		AppName:     appName,
		WindowTitle: windowTitle,
		Type:        InferType(appName, windowTitle),
		ID:          ContextID(appName, windowTitle),
		DetectedAt:  time.Now(),
	}
	if pdf := ParsePDFTitle(appName, windowTitle); pdf != nil {
		ctx.ReadingSection = pdf.ReadingSection
	}
	return ctx
}

// DisplayName returns a human-readable description of the context.
func (c *Context) DisplayName() string {
	title := c.WindowTitle
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	switch {
	case c.Type == TypeWebsite && c.WindowTitle != "":
		return fmt.Sprintf("%s: %s...", c.AppName, title)
	case c.WindowTitle != "":
		return fmt.Sprintf("%s - %s", c.AppName, title)
	default:
		return c.AppName
	}
}

var (
	browserNames  = []string{"safari", "chrome", "firefox", "brave", "edge", "opera", "chromium", "vivaldi"}
	editorNames   = []string{"cursor", "visual studio code", "code", "vim", "sublime", "gvim", "gedit", "kate"}
	terminalNames = []string{"terminal", "iterm", "gnome-terminal", "konsole"}
)

// InferType classifies a context from its app name and window title. Used
// when building contexts from incoming data that did not tag the type itself.
func InferType(appName, windowTitle string) ContextType {
	app := strings.ToLower(appName)
	title := strings.ToLower(windowTitle)

	if ParsePDFTitle(appName, windowTitle) != nil {
		return TypePDF
	}
	if containsAny(app, browserNames) {
		if strings.Contains(title, "http") || strings.Contains(title, "www.") || strings.Contains(title, ".com") {
			return TypeWebsite
		}
		return TypeBrowser
	}
	if containsAny(app, editorNames) {
		return TypeFile
	}
	if containsAny(app, terminalNames) {
		return TypeTerminal
	}
	return TypeApp
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// PDFInfo is what a PDF viewer window title tells us about reading position.
type PDFInfo struct {
	DocName        string
	PageNum        int
	TotalPages     int
	ReadingSection string
}

var pdfPageRe = regexp.MustCompile(`(?i)(.+?\.pdf)\s*[\x{2013}\x{2014}-]\s*Page\s+(\d+)\s+of\s+(\d+)`)
var pdfSplitRe = regexp.MustCompile(`\s*[\x{2013}\x{2014}-]\s*`)

// ParsePDFTitle extracts document name and page position from a PDF viewer
// window title (e.g. "Preview - paper.pdf – Page 7 of 21"). Returns nil when
// the window is not a PDF viewer showing a PDF.
func ParsePDFTitle(appName, windowTitle string) *PDFInfo {
	app := strings.ToLower(appName)
	if !strings.Contains(app, "preview") && !strings.Contains(app, "acrobat") && !strings.Contains(app, "evince") {
		return nil
	}
	title := strings.TrimSpace(windowTitle)
	if title == "" || !strings.Contains(strings.ToLower(title), ".pdf") {
		return nil
	}

	if m := pdfPageRe.FindStringSubmatch(title); m != nil {
		page := atoi(m[2])
		total := atoi(m[3])
		return &PDFInfo{
			DocName:        strings.TrimSpace(m[1]),
			PageNum:        page,
			TotalPages:     total,
			ReadingSection: fmt.Sprintf("Page %d of %d", page, total),
		}
	}

	// No page marker: just the document name
	parts := pdfSplitRe.Split(title, 2)
	if doc := strings.TrimSpace(parts[0]); doc != "" {
		return &PDFInfo{DocName: doc, PageNum: 1, TotalPages: 1, ReadingSection: "Page 1"}
	}
	return nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
