package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/apm"
	"github.com/fd1az/craftcalc/internal/apperror"
)

// POST /sessions
func (s *Server) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext(err.Error()),
			apperror.WithStatusCode(http.StatusBadRequest)))
		return
	}

	sess, err := s.svc.OpenSession(c.Request.Context(), req.RecipeID, req.Server, req.ProfileID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondTree(c, http.StatusCreated, sess.ID, sess.Snapshot())
}

// GET /sessions/:id
func (s *Server) getSession(c *gin.Context) {
	sess, err := s.svc.Session(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondTree(c, http.StatusOK, sess.ID, sess.Snapshot())
}

// DELETE /sessions/:id
func (s *Server) closeSession(c *gin.Context) {
	if err := s.svc.CloseSession(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /sessions/:id/toggle
func (s *Server) toggle(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperror.Validation(apperror.CodeInvalidPath, "path is required"))
		return
	}
	path, ok := domain.ParsePath(req.Path)
	if !ok {
		s.fail(c, apperror.Validation(apperror.CodeInvalidPath, req.Path))
		return
	}

	id := c.Param("id")
	tree, err := s.svc.Toggle(c.Request.Context(), id, path)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondTree(c, http.StatusOK, id, tree)
}

// POST /sessions/:id/expand-all
func (s *Server) expandAll(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.ExpandBudget)
	defer cancel()

	id := c.Param("id")
	tree, report, err := s.svc.ExpandAll(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, expandResponse{
		Tree:   newTreeResponse(id, tree, s.svc.Summarize(tree)),
		Report: newReportResponse(report),
	})
}

// POST /sessions/:id/collapse-all
func (s *Server) collapseAll(c *gin.Context) {
	id := c.Param("id")
	tree, err := s.svc.CollapseAll(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondTree(c, http.StatusOK, id, tree)
}

// PUT /profiles/:profile/stock/:item
func (s *Server) putStock(c *gin.Context) {
	if s.stock == nil {
		s.fail(c, apperror.New(apperror.CodeStockStoreUnavailable,
			apperror.WithContext("no stock store configured"),
			apperror.WithStatusCode(http.StatusServiceUnavailable)))
		return
	}

	itemID, err := strconv.Atoi(c.Param("item"))
	if err != nil {
		s.fail(c, apperror.Validation(apperror.CodeInvalidInput, "item id must be numeric"))
		return
	}
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, apperror.Validation(apperror.CodeInvalidInput, "quantity is required"))
		return
	}

	profile := c.Param("profile")
	if err := s.stock.Upsert(c.Request.Context(), profile, itemID, *req.Quantity); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile_id": profile, "item_id": itemID, "quantity": *req.Quantity})
}

func (s *Server) respondTree(c *gin.Context, status int, sessionID string, tree *domain.RecipeTree) {
	c.JSON(status, newTreeResponse(sessionID, tree, s.svc.Summarize(tree)))
}

// fail writes err as the apperror response envelope.
func (s *Server) fail(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(apperror.CodeInternalError, "", err)
	}
	if traceID := apm.TraceID(c.Request.Context()); traceID != "" {
		appErr.WithTraceID(traceID)
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		s.log.Error(c.Request.Context(), "request error", "error", appErr)
	}
	c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
}
