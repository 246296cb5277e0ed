package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/drgusroqa-netizen/Naser-Chat/internal/core"
	"github.com/drgusroqa-netizen/Naser-Chat/internal/proto"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func statusFromCode(code string) int {
	switch code {
	case core.ErrCodeValidation:
		return http.StatusBadRequest
	case core.ErrCodeForbidden:
		return http.StatusForbidden
	case core.ErrCodeNotFound:
		return http.StatusNotFound
	case core.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case core.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeCoreError maps a pipeline outcome to an HTTP response. Rate-limited
// responses carry a Retry-After header alongside the body.
func writeCoreError(c *gin.Context, cerr *core.CoreError) {
	resp := ErrorResponse{Error: cerr.Message, Code: cerr.Code}
	if cerr.Code == core.ErrCodeInfrastructure {
		resp.Error = "internal server error"
	}
	if cerr.Code == core.ErrCodeRateLimited {
		resp.RetryAfter = cerr.RetryAfter
		c.Header("Retry-After", strconv.Itoa(cerr.RetryAfter))
	}
	c.JSON(statusFromCode(cerr.Code), resp)
}

func protoErrorFromCore(cerr *core.CoreError) *proto.Error {
	msg := cerr.Message
	if cerr.Code == core.ErrCodeInfrastructure {
		msg = "internal error"
	}
	return &proto.Error{Code: cerr.Code, Msg: msg, RetryAfter: cerr.RetryAfter}
}

func outboundFromEvent(ev *core.Event) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: ev.Name,
		Data:  ev.Payload,
	}
}
