package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"report_renderer/internal/export"
	"report_renderer/internal/models"
	"report_renderer/internal/render"
	"report_renderer/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// healthCheck handles health check requests
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "report-renderer",
	})
}

// renderSingle returns a handler rendering one record in the given format
func (s *Server) renderSingle(format export.Format) echo.HandlerFunc {
	return func(c echo.Context) error {
		var record models.Record
		if err := c.Bind(&record); err != nil {
			s.logger.WithError(err).Error("Failed to bind request")
			return s.badRequest(c, "Invalid request format")
		}
		if err := c.Validate(&record); err != nil {
			s.logger.WithError(err).Warn("Request validation failed")
			return s.badRequest(c, "Invalid record")
		}

		req := service.Request{Format: format, Params: queryParams(c)}
		res, err := s.service.RenderSingle(requestContext(c), record, req)
		if err != nil {
			return s.renderFailed(c, err)
		}
		return sendResult(c, res)
	}
}

// renderCollection renders a JSON array of records, PDF unless :format says otherwise
func (s *Server) renderCollection(c echo.Context) error {
	format := export.FormatPDF
	if p := c.Param("format"); p != "" {
		format = export.Format(p)
	}

	var records []models.Record
	if err := c.Bind(&records); err != nil {
		s.logger.WithError(err).Error("Failed to bind request")
		return s.badRequest(c, "Invalid request format")
	}

	var items []any
	if records != nil {
		items = make([]any, 0, len(records))
	}
	for i := range records {
		if err := c.Validate(&records[i]); err != nil {
			s.logger.WithFields(logrus.Fields{"index": i}).WithError(err).Warn("Request validation failed")
			return s.badRequest(c, fmt.Sprintf("Invalid record at index %d", i))
		}
		items = append(items, records[i])
	}

	req := service.Request{Format: format, Params: queryParams(c)}
	res, err := s.service.RenderCollection(requestContext(c), items, req)
	if err != nil {
		return s.renderFailed(c, err)
	}
	return sendResult(c, res)
}

// listRenders handles listing the render journal
func (s *Server) listRenders(c echo.Context) error {
	var params service.ListRenderParams
	if err := c.Bind(&params); err != nil {
		return s.badRequest(c, "Invalid query parameters")
	}

	list, err := s.service.ListRenders(requestContext(c), params)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list renders")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error":      "Failed to list renders",
			"request_id": requestID(c),
		})
	}

	return c.JSON(http.StatusOK, list)
}

// renderFailed maps every pipeline failure to a generic 400
func (s *Server) renderFailed(c echo.Context, err error) error {
	fields := logrus.Fields{"request_id": requestID(c)}
	var stageErr *service.StageError
	if errors.As(err, &stageErr) {
		fields["stage"] = stageErr.Stage
		fields["template"] = stageErr.Template
	}
	s.logger.WithFields(fields).WithError(err).Error("Failed to render report")
	return s.badRequest(c, "Failed to render report")
}

func (s *Server) badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error":      message,
		"request_id": requestID(c),
	})
}

func sendResult(c echo.Context, res *export.Result) error {
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="report.%s"`, res.Extension))
	return c.Blob(http.StatusOK, res.ContentType, res.Data)
}

// queryParams передает значения строки запроса как параметры шаблона
func queryParams(c echo.Context) render.Params {
	values := c.QueryParams()
	if len(values) == 0 {
		return nil
	}
	params := make(render.Params, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func requestContext(c echo.Context) context.Context {
	return service.WithRequestID(c.Request().Context(), requestID(c))
}
