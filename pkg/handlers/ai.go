package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"draftpad/pkg/aitools"
	"draftpad/pkg/store"
)

// aiChatResponse is the chat endpoint payload: the assistant's message
// plus, when a tool ran, its outcome and the resulting content.
type aiChatResponse struct {
	Message    string            `json:"message"`
	ToolCall   *aitools.ToolCall `json:"toolCall,omitempty"`
	ToolResult *aitools.Result   `json:"toolResult,omitempty"`
}

// AIChat runs one turn of the AI editing conversation against a
// document. The model sees the document with line numbers; if it
// answers with a tool call the edit is executed, persisted and pushed
// to connected editors.
func (h *Handlers) AIChat(w http.ResponseWriter, r *http.Request) {
	if h.ai == nil {
		writeError(w, http.StatusServiceUnavailable, "AI editing is not configured")
		return
	}

	var req struct {
		Messages []aitools.Message   `json:"messages"`
		File     *aitools.Attachment `json:"file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "No messages provided")
		return
	}

	id := mux.Vars(r)["id"]
	doc, err := h.docs.Get(id)
	if err != nil {
		writeError(w, storeStatus(err), "Document not found")
		return
	}

	reply, err := h.ai.Chat(r.Context(), req.Messages, aitools.FormatWithLineNumbers(doc.Content), req.File)
	if err != nil {
		writeError(w, http.StatusBadGateway, "AI service failed")
		return
	}

	resp := aiChatResponse{Message: reply.Message, ToolCall: reply.ToolCall}
	if reply.ToolCall != nil {
		result := aitools.Execute(*reply.ToolCall, doc.Content)
		resp.ToolResult = &result
		if result.Success {
			if err := h.applyAIContent(id, result.NewContent); err != nil {
				writeError(w, storeStatus(err), "Failed to persist AI edit")
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApplyAITool executes a single tool call directly, without a chat turn.
// Tool-level failures (bad ranges, text not found) come back as a
// non-success result, not an HTTP error: the caller relays them to the
// model for a retry.
func (h *Handlers) ApplyAITool(w http.ResponseWriter, r *http.Request) {
	var call aitools.ToolCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	id := mux.Vars(r)["id"]
	doc, err := h.docs.Get(id)
	if err != nil {
		writeError(w, storeStatus(err), "Document not found")
		return
	}

	result := aitools.Execute(call, doc.Content)
	if result.Success {
		if err := h.applyAIContent(id, result.NewContent); err != nil {
			writeError(w, storeStatus(err), "Failed to persist AI edit")
			return
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) applyAIContent(documentID, content string) error {
	if _, err := h.docs.Update(documentID, &store.DocumentUpdate{Content: &content}); err != nil {
		return err
	}
	h.notifyDocumentUpdated(documentID, content)
	return nil
}
