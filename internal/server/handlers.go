package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/output"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/version"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/extractor"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/llm"
)

type handlers struct {
	classifier Classifier
	maxUpload  int64
}

type extractRequest struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
	Retry     bool   `json:"retry,omitempty"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.String()})
}

// upload classifies the HTML file sent in multipart field "file" and
// returns the bare Features.
func (h *handlers) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		if tooLarge(err) || c.Request.ContentLength > h.maxUpload {
			h.fail(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), false)
			return
		}
		h.fail(c, http.StatusBadRequest, "missing file: upload the page as multipart field \"file\"", false)
		return
	}
	if fh.Size > h.maxUpload {
		h.fail(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), false)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("read file: %v", err), false)
		return
	}
	defer f.Close()

	body, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("read file: %v", err), false)
		return
	}

	res, err := h.classifier.ExtractHTML(c.Request.Context(), string(body))
	if err != nil {
		h.classifyFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, output.NewRecord(fh.Filename, res, false))
}

// extract classifies {"content": "..."} and adds a _metadata block.
func (h *handlers) extract(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			h.fail(c, http.StatusRequestEntityTooLarge, h.tooLargeMessage(), false)
			return
		}
		h.fail(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), false)
		return
	}

	res, err := h.classifier.ExtractHTML(c.Request.Context(), req.Content)
	if err != nil {
		h.classifyFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, output.NewRecord(req.Source, res, true))
}

func (h *handlers) classifyFailed(c *gin.Context, err error) {
	status, retry := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "classification failed", "status", status, "error", err)
	} else {
		logger.WarnContext(c.Request.Context(), "classification rejected", "status", status, "error", err)
	}
	msg := err.Error()
	if errors.Is(err, classify.ErrExtractionFailed) {
		msg = "no result, the model did not produce a valid Features structure; please retry"
	}
	h.fail(c, status, msg, retry)
}

func (h *handlers) fail(c *gin.Context, status int, msg string, retry bool) {
	c.AbortWithStatusJSON(status, errorResponse{
		Error:     msg,
		RequestID: c.GetString(ctxRequestID),
		Retry:     retry,
	})
}

func (h *handlers) tooLargeMessage() string {
	return "upload too large, limit is " + humanize.IBytes(uint64(h.maxUpload))
}

// statusFor maps a classification error to an HTTP status and whether the
// client should retry.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, classify.ErrInvalidInput):
		return http.StatusBadRequest, false
	case errors.Is(err, extractor.ErrRateLimited), llm.IsRateLimited(err):
		return http.StatusTooManyRequests, true
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, true
	case errors.Is(err, classify.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, true
	case errors.Is(err, classify.ErrOracleUnavailable):
		return http.StatusBadGateway, false
	default:
		return http.StatusInternalServerError, false
	}
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
