package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/batsim/core/control"
	"github.com/kilianp07/batsim/core/telemetry"
)

// CodeNotConfigured is returned when no queryable telemetry store exists.
const CodeNotConfigured = "NOT_CONFIGURED"

// CodeNotFound is returned when no record has been produced yet.
const CodeNotFound = "NOT_FOUND"

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: msg}})
}

// httpStatus maps a control error code to an HTTP status.
func httpStatus(code string) int {
	switch code {
	case control.CodeBadRequest:
		return http.StatusBadRequest
	case control.CodeInvalidTable, control.CodeInvalidParameter:
		return http.StatusUnprocessableEntity
	case control.CodeInvalidCapacity, control.CodeCannotStart:
		return http.StatusConflict
	case control.CodeHardwareError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (rt *router) fail(c *gin.Context, err error) {
	code := control.ErrorCode(err)
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		rt.log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	writeError(c, status, code, err.Error())
}

func (rt *router) status(c *gin.Context) {
	c.JSON(http.StatusOK, rt.svc.Status())
}

func (rt *router) start(c *gin.Context) {
	if err := rt.svc.Start(); err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rt.svc.Status())
}

func (rt *router) stop(c *gin.Context) {
	rt.svc.Stop()
	c.JSON(http.StatusOK, rt.svc.Status())
}

func (rt *router) getParameters(c *gin.Context) {
	c.JSON(http.StatusOK, rt.svc.Parameters())
}

// putParameters overlays the request body onto the current parameters so
// partial updates keep the other fields.
func (rt *router) putParameters(c *gin.Context) {
	p := rt.svc.Parameters()
	if err := c.ShouldBindJSON(&p); err != nil {
		writeError(c, http.StatusBadRequest, control.CodeBadRequest, err.Error())
		return
	}
	if err := rt.svc.UpdateParameters(p); err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rt.svc.Parameters())
}

type loadRequest struct {
	CurrentMA *float64 `json:"current_ma"`
}

func (rt *router) putLoad(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, control.CodeBadRequest, err.Error())
		return
	}
	if req.CurrentMA == nil {
		writeError(c, http.StatusBadRequest, control.CodeBadRequest, "current_ma is required")
		return
	}
	if err := rt.svc.SetLoad(c.Request.Context(), *req.CurrentMA); err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_ma": *req.CurrentMA})
}

func (rt *router) latest(c *gin.Context) {
	rec, ok := rt.svc.Latest()
	if !ok {
		writeError(c, http.StatusNotFound, CodeNotFound, "no step recorded yet")
		return
	}
	c.JSON(http.StatusOK, rec)
}

// telemetry handles GET /api/v1/telemetry?start=&end=&session=&limit=.
func (rt *router) telemetry(c *gin.Context) {
	if rt.querier == nil {
		writeError(c, http.StatusNotImplemented, CodeNotConfigured, "no queryable telemetry store configured")
		return
	}
	q, err := parseQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, control.CodeBadRequest, err.Error())
		return
	}
	recs, err := rt.querier.Query(c.Request.Context(), q)
	if err != nil {
		rt.fail(c, err)
		return
	}
	if recs == nil {
		recs = []telemetry.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func parseQuery(c *gin.Context) (telemetry.Query, error) {
	var q telemetry.Query
	if s := c.Query("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errors.New("start must be RFC3339")
		}
		q.Start = t
	}
	if s := c.Query("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, errors.New("end must be RFC3339")
		}
		q.End = t
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errors.New("limit must be a non-negative integer")
		}
		q.Limit = n
	}
	q.Session = c.Query("session")
	return q, nil
}
