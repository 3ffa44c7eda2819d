package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/smartlang-chat/internal/services"
	"github.com/tbourn/smartlang-chat/internal/session"
)

// ListDocumentsResponse is the knowledge-base panel of a thread.
type ListDocumentsResponse struct {
	Documents []services.DocumentPreview `json:"documents"`
	Notices   []session.Notice           `json:"notices,omitempty"`
}

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List uploaded files of a thread
// @Description Returns up to 50 documents, newest first, each with a 400-character preview.
// @Tags        Documents
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Thread ID"
//
// @Success     200  {object} handlers.ListDocumentsResponse
// @Failure     404  {object} handlers.ErrorResponse "Thread not found"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /threads/{id}/documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	st, docs, err := h.ctl.KnowledgeBase(c.Request.Context(), stateFor(c, c.Param("id")))
	if err != nil {
		failFor(c, st, err)
		return
	}
	if docs == nil {
		docs = []services.DocumentPreview{}
	}
	ok(c, http.StatusOK, ListDocumentsResponse{Documents: docs, Notices: st.Notices})
}
