package session

import (
	"strings"

	"github.com/doc-clustering/clusterview/internal/models"
)

// ActionType tells the page what to do after a file click.
type ActionType string

const (
	// ActionNavigate moves the browser to another screen.
	ActionNavigate ActionType = "navigate"
	// ActionInline shows the screen's selected file in the inline viewer.
	ActionInline ActionType = "inline"
	// ActionOpen opens a URL in a new tab.
	ActionOpen ActionType = "open"
)

// Action is the outcome of a file click.
type Action struct {
	Type     ActionType           `json:"type"`
	URL      string               `json:"url,omitempty"`
	Selected *models.SelectedFile `json:"selected,omitempty"`
}

// reservedTextFiles get the dedicated text screen instead of the inline viewer.
var reservedTextFiles = map[string]bool{
	"differences.txt":  true,
	"similarities.txt": true,
}

type dispatchKind int

const (
	dispatchTextScreen dispatchKind = iota
	dispatchInlineText
	dispatchPDF
	dispatchExternal
)

func classify(filename string) dispatchKind {
	switch {
	case reservedTextFiles[filename]:
		return dispatchTextScreen
	case strings.HasSuffix(filename, ".txt"):
		return dispatchInlineText
	case strings.HasSuffix(filename, ".pdf"):
		return dispatchPDF
	default:
		return dispatchExternal
	}
}
