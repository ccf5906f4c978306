package v1

import (
	"encoding/json"
	"strconv"
	"strings"
)

// assetsResponse mirrors the remote envelope: a page of assets plus the total
// match count for the query.
type assetsResponse struct {
	Total  int         `json:"total"`
	Assets []wireAsset `json:"Assets"`
}

type wireAsset struct {
	ID         string                   `json:"id"`
	Attributes map[string]wireAttribute `json:"Attributes"`
}

type wireAttribute struct {
	Value json.RawMessage `json:"value"`
}

func (a wireAsset) record() Record {
	return Record{
		ID:        a.ID,
		Number:    a.stringAttr("Number"),
		Title:     a.stringAttr("Name"),
		AssetType: a.stringAttr("AssetType"),
		State:     a.intAttr("AssetState"),
	}
}

func (a wireAsset) stringAttr(name string) string {
	attr, ok := a.Attributes[name]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(attr.Value, &value); err == nil {
		return value
	}
	return strings.Trim(string(attr.Value), `"`)
}

// intAttr tolerates both numeric and quoted-numeric state values.
func (a wireAsset) intAttr(name string) int {
	attr, ok := a.Attributes[name]
	if !ok {
		return 0
	}
	var number float64
	if err := json.Unmarshal(attr.Value, &number); err == nil {
		return int(number)
	}
	var text string
	if err := json.Unmarshal(attr.Value, &text); err == nil {
		if parsed, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			return parsed
		}
	}
	return 0
}
