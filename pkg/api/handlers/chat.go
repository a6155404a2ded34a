// Package handlers contains the HTTP handlers for the chat API surface.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"pixchat/pkg/assets"
	"pixchat/pkg/auth"
	"pixchat/pkg/chat"
	"pixchat/pkg/logger"
	"pixchat/pkg/realtime"
	"pixchat/pkg/utils"
)

// Chat bundles the collaborators the chat routes need.
type Chat struct {
	svc     *chat.Service
	hub     *realtime.Hub
	uploads *assets.Uploader
}

// NewChat builds the chat handler set. uploads may be nil when no bucket is
// configured; the upload route then answers 503.
func NewChat(svc *chat.Service, hub *realtime.Hub, uploads *assets.Uploader) *Chat {
	return &Chat{svc: svc, hub: hub, uploads: uploads}
}

// Register attaches the chat routes to the provided router.
func (h *Chat) Register(r *mux.Router) {
	r.HandleFunc("/threads", h.createThread).Methods(http.MethodPost)
	r.HandleFunc("/threads", h.listThreads).Methods(http.MethodGet)

	r.HandleFunc("/threads/{threadID}/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/threads/{threadID}/messages", h.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/threads/{threadID}/read", h.markRead).Methods(http.MethodPut)

	r.HandleFunc("/uploads", h.presignUpload).Methods(http.MethodPost)
	r.HandleFunc("/ws", h.serveWS).Methods(http.MethodGet)
}

// writeErr maps chat errors onto their HTTP status and stable code; anything
// else is a 500.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var ce *chat.Error
	if errors.As(err, &ce) {
		utils.JSONErrorCode(w, ce.Status, ce.Code, ce.Msg)
		return
	}
	logger.Error("request_failed", zap.String("path", r.URL.Path), zap.Error(err))
	utils.JSONError(w, http.StatusInternalServerError, "internal error")
}

// createThread handles POST /threads: resolve or create the thread between
// the caller and another user, anchored on a post.
func (h *Chat) createThread(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserIDFromContext(r.Context())

	var body struct {
		UserID string `json:"user_id"`
		PostID string `json:"post_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	th, created, err := h.svc.GetOrCreateThread(r.Context(), callerID, body.UserID, body.PostID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.JSONWrite(w, status, map[string]any{
		"thread": th,
		"is_new": created,
	})
}

// listThreads handles GET /threads?limit=&offset=.
func (h *Chat) listThreads(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserIDFromContext(r.Context())
	limit, err := queryInt(r, "limit")
	if err != nil {
		utils.JSONErrorCode(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		utils.JSONErrorCode(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	page, err := h.svc.ListThreads(r.Context(), callerID, limit, offset)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, page)
}

// sendMessage handles POST /threads/{threadID}/messages.
func (h *Chat) sendMessage(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserIDFromContext(r.Context())
	threadID := mux.Vars(r)["threadID"]

	var body struct {
		Body          string `json:"body"`
		AttachmentURL string `json:"attachment_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	msg, err := h.svc.SendMessage(r.Context(), callerID, threadID, strings.TrimSpace(body.Body), strings.TrimSpace(body.AttachmentURL))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, msg)
}

// listMessages handles GET /threads/{threadID}/messages?limit=&before=.
func (h *Chat) listMessages(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserIDFromContext(r.Context())
	threadID := mux.Vars(r)["threadID"]
	limit, err := queryInt(r, "limit")
	if err != nil {
		utils.JSONErrorCode(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var before int64
	if v := r.URL.Query().Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		before = n
	}

	page, err := h.svc.ListMessages(r.Context(), callerID, threadID, limit, before)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, page)
}

// markRead handles PUT /threads/{threadID}/read.
func (h *Chat) markRead(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserIDFromContext(r.Context())
	threadID := mux.Vars(r)["threadID"]

	n, err := h.svc.MarkRead(r.Context(), callerID, threadID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]int{"marked_count": n})
}

// presignUpload handles POST /uploads: issue a presigned S3 PUT URL for an
// attachment, plus a presigned GET URL the client can embed right away.
func (h *Chat) presignUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "uploads not configured")
		return
	}
	callerID := auth.UserIDFromContext(r.Context())

	var body struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.FileName == "" || body.ContentType == "" {
		utils.JSONError(w, http.StatusBadRequest, "file_name and content_type required")
		return
	}

	uploadURL, key, err := h.uploads.PresignUpload(r.Context(), callerID, body.FileName, body.ContentType)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	readURL, err := h.uploads.PresignRead(r.Context(), key)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{
		"upload_url": uploadURL,
		"read_url":   readURL,
		"key":        key,
	})
}

// serveWS handles GET /ws: upgrade the authenticated caller onto the
// realtime gateway.
func (h *Chat) serveWS(w http.ResponseWriter, r *http.Request) {
	callerID := auth.UserIDFromContext(r.Context())
	if callerID == "" {
		utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.hub.HandleWS(w, r, callerID)
}

// queryInt parses an optional integer query parameter. Absent means zero;
// a malformed value is an error, never coerced to a default.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}
