package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"
)

type expandRequest struct {
	Text      string
	ChannelID string
	ThreadTS  string
}

// handleExpand is the slash-command webhook. The chat surface only ever sees
// a normal formatted message or silence: a missing or malformed body, an
// unknown path under an empty secret, and a reference-free message all yield
// an empty 200 response.
func (r *router) handleExpand(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if req.URL.Path != r.endpoint() {
		http.NotFound(w, req)
		return
	}

	payload := parseExpandRequest(req)
	if strings.TrimSpace(payload.Text) == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	text := r.deps.Expander.Expand(req.Context(), payload.Text, payload.ChannelID, "webhook")
	if text == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	response := map[string]string{"text": text}
	if payload.ThreadTS != "" {
		response["thread_ts"] = payload.ThreadTS
	}
	writeJSON(w, http.StatusOK, response)
}

// parseExpandRequest accepts either a JSON or a form-encoded body. Anything
// unparseable degrades to an empty request rather than an error.
func parseExpandRequest(req *http.Request) expandRequest {
	contentType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if contentType == "application/json" {
		var body struct {
			Text      string `json:"text"`
			ChannelID string `json:"channel_id"`
			Channel   string `json:"channel"`
			ThreadTS  string `json:"thread_ts"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return expandRequest{}
		}
		channel := body.ChannelID
		if channel == "" {
			channel = body.Channel
		}
		return expandRequest{
			Text:      body.Text,
			ChannelID: strings.TrimSpace(channel),
			ThreadTS:  strings.TrimSpace(body.ThreadTS),
		}
	}

	if err := req.ParseForm(); err != nil {
		return expandRequest{}
	}
	channel := req.PostFormValue("channel_id")
	if channel == "" {
		channel = req.PostFormValue("channel")
	}
	return expandRequest{
		Text:      req.PostFormValue("text"),
		ChannelID: strings.TrimSpace(channel),
		ThreadTS:  strings.TrimSpace(req.PostFormValue("thread_ts")),
	}
}
