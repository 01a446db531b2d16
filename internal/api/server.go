// Package api serves beam search decoding over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/beamsearch/internal/model"
)

type Server struct {
	store   *DecodeStore
	service *DecodeService
}

func NewServer(store *DecodeStore, service *DecodeService) *Server {
	if store == nil {
		store = NewDecodeStore()
	}
	return &Server{
		store:   store,
		service: service,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/models", s.handleListModels)

	e.POST("/v1/decode", s.handleCreateDecode)
	e.GET("/v1/decode", s.handleListDecodes)
	e.GET("/v1/decode/:id", s.handleGetDecode)
	e.DELETE("/v1/decode/:id", s.handleDeleteDecode)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateDecode(c *echo.Context) error {
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "decode service not configured", "", "")
	}
	req, err := decodeJSON[DecodeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "")
	}

	rec, err := s.service.Decode(c.Request().Context(), &req)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error(), invalidParam(err))
	case errors.Is(err, model.ErrUnknownModel):
		return writeError(c, http.StatusNotFound, "not_found_error", err.Error(), "model", "model_not_found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return writeError(c, http.StatusServiceUnavailable, "server_error", err.Error(), "", "cancelled")
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	if req.Store == nil || *req.Store {
		s.store.Save(*rec)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleListDecodes(c *echo.Context) error {
	return c.JSON(http.StatusOK, DecodeList{
		Object: "list",
		Data:   s.store.List(),
	})
}

func (s *Server) handleGetDecode(c *echo.Context) error {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "decode not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDeleteDecode(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return writeNotFound(c, "decode not found")
	}
	return c.JSON(http.StatusOK, DeleteDecodeResp{
		ID:      id,
		Object:  "decode",
		Deleted: true,
	})
}

func (s *Server) handleListModels(c *echo.Context) error {
	if s.service == nil || s.service.provider == nil {
		return c.JSON(http.StatusOK, ModelList{Object: "list", Data: []ModelObject{}})
	}
	names, err := s.service.provider.ListModels()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	data := make([]ModelObject, len(names))
	for i, name := range names {
		data[i] = ModelObject{ID: name, Object: "model", OwnedBy: "local"}
	}
	return c.JSON(http.StatusOK, ModelList{Object: "list", Data: data})
}
