package trigger

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type Kind int

const (
	KindNumber Kind = iota
	KindID
	KindSearch
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 200
)

// Trigger is one reference extracted from a message, tagged by syntax.
type Trigger struct {
	Kind     Kind
	Raw      string
	Position int

	// Number and ID references.
	TypeCode string
	Number   string // full display number, uppercased (e.g. "AT-42")
	ID       string // internal id digits (e.g. "1234")

	// Search references.
	Query   string
	Options SearchOptions
}

type SearchOptions struct {
	PageSize   int
	OpenOnly   bool
	ClosedOnly bool
}

var (
	searchPattern = regexp.MustCompile(`(?i)\bfind((?:\s+/\S+)*)\s+(\S.*)$`)
	numberPattern = regexp.MustCompile(`\b([A-Za-z]+)-(\d+)\b`)
	idPattern     = regexp.MustCompile(`\b([A-Za-z]+)(?::|%3[Aa])(\d+)\b`)
)

// Extract scans a message for references. A search command takes exclusive
// precedence: when present, number and id syntaxes are not scanned at all.
// Otherwise both identifier syntaxes are collected across the whole text in
// left-to-right order of their start positions.
func Extract(text string) []Trigger {
	if match := searchPattern.FindStringSubmatchIndex(text); match != nil {
		options := parseSearchOptions(text[match[2]:match[3]])
		return []Trigger{{
			Kind:     KindSearch,
			Raw:      text[match[0]:match[1]],
			Position: match[0],
			Query:    strings.TrimSpace(text[match[4]:match[5]]),
			Options:  options,
		}}
	}

	var triggers []Trigger
	for _, match := range numberPattern.FindAllStringSubmatchIndex(text, -1) {
		triggers = append(triggers, Trigger{
			Kind:     KindNumber,
			Raw:      text[match[0]:match[1]],
			Position: match[0],
			TypeCode: strings.ToUpper(text[match[2]:match[3]]),
			Number:   strings.ToUpper(text[match[0]:match[1]]),
		})
	}
	for _, match := range idPattern.FindAllStringSubmatchIndex(text, -1) {
		triggers = append(triggers, Trigger{
			Kind:     KindID,
			Raw:      text[match[0]:match[1]],
			Position: match[0],
			TypeCode: strings.ToUpper(text[match[2]:match[3]]),
			ID:       text[match[4]:match[5]],
		})
	}
	sort.SliceStable(triggers, func(i, j int) bool {
		return triggers[i].Position < triggers[j].Position
	})

	// Drop matches overlapping an earlier accepted span.
	kept := triggers[:0]
	end := -1
	for _, t := range triggers {
		if t.Position < end {
			continue
		}
		kept = append(kept, t)
		end = t.Position + len(t.Raw)
	}
	return kept
}

func parseSearchOptions(raw string) SearchOptions {
	options := SearchOptions{PageSize: DefaultPageSize}
	for _, field := range strings.Fields(raw) {
		token := strings.TrimPrefix(field, "/")
		if size, err := strconv.Atoi(token); err == nil && size > 0 {
			if size > MaxPageSize {
				size = MaxPageSize
			}
			options.PageSize = size
			continue
		}
		switch strings.ToLower(token) {
		case "open":
			options.OpenOnly = true
		case "closed":
			options.ClosedOnly = true
		}
	}
	return options
}
