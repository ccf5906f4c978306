package format

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/slaug/slaug/internal/v1"
)

// State bands derived from the remote numeric asset state.
const (
	StateFuture   = "future"
	StateOpen     = "open"
	StateClosed   = "closed"
	StateTemplate = "template"
	StateDeleted  = "deleted"
)

// Band maps a numeric asset state to its lifecycle label.
func Band(state int) string {
	switch {
	case state >= 255:
		return StateDeleted
	case state >= 192:
		return StateTemplate
	case state >= 128:
		return StateClosed
	case state >= 64:
		return StateOpen
	default:
		return StateFuture
	}
}

// escaper covers the characters with meaning in the chat platform's markup.
// See https://api.slack.com/docs/message-formatting#how_to_escape_characters
var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape encodes user-supplied text for inclusion in message markup. Applied
// once, never to the constructed markup itself.
func Escape(text string) string {
	return escaper.Replace(text)
}

// Formatter renders canonical asset records into chat markup.
type Formatter struct {
	baseURL  string
	localize func(token string) string
}

func New(baseURL string, localize func(token string) string) *Formatter {
	if localize == nil {
		localize = func(token string) string { return token }
	}
	return &Formatter{
		baseURL:  strings.TrimRight(baseURL, "/"),
		localize: localize,
	}
}

// Asset renders one record. A nil record yields the empty string so
// suppression propagates transparently through the pipeline.
func (f *Formatter) Asset(record *v1.Record) string {
	if record == nil {
		return ""
	}
	band := Band(record.State)

	label := f.localize(record.AssetType)
	if band == StateTemplate {
		label += " Template"
	}
	number := fmt.Sprintf("*%s*", record.Number)
	href := fmt.Sprintf("%s/assetdetail.v1?Number=%s", f.baseURL, url.QueryEscape(record.Number))
	link := fmt.Sprintf("<%s|%s>", href, Escape(record.Title))
	if band == StateDeleted || band == StateClosed {
		number = fmt.Sprintf("%s (%s)", number, band)
		link = fmt.Sprintf("~%s~", link)
	}

	return fmt.Sprintf("%s %s %s", label, number, link)
}

// Search renders the "more results" link for a query whose match count
// exceeded the returned page.
func (f *Formatter) Search(query string) string {
	escaped := Escape(url.QueryEscape(query))
	return fmt.Sprintf("<%s/Search.mvc/Advanced?q=%s|More...>", f.baseURL, escaped)
}
