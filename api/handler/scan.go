package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fyxxlabs/sitescan/jobs"
	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/preview"
)

// PostScan returns a handler for POST /api/v1/scans.
//
// The scan runs in the background; the response carries the job ID to poll.
func PostScan(m *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "invalid request: "+err.Error())
			return
		}
		if err := validateStoreURL(req.URL); err != nil {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}

		snap := m.Submit(req)
		cacheStatus := "miss"
		if snap.CacheHit {
			cacheStatus = "hit"
		}
		c.JSON(http.StatusAccepted, models.ScanAcceptedResponse{
			Success:     true,
			ID:          snap.ID,
			Status:      snap.Status,
			CacheStatus: cacheStatus,
		})
	}
}

// GetScan returns a handler for GET /api/v1/scans/:id.
func GetScan(m *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := lookup(c, m)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, snap.StatusResponse())
	}
}

// GetScanResult returns a handler for GET /api/v1/scans/:id/result.
// Unfinished scans answer 409.
func GetScanResult(m *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := finished(c, m)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, models.ScanResultResponse{ID: snap.ID, Status: snap.Status, Result: snap.Result})
	}
}

// GetScanPreview returns a handler for GET /api/v1/scans/:id/preview.
func GetScanPreview(m *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := finished(c, m)
		if !ok {
			return
		}
		p := preview.Project(snap.Result)
		c.JSON(http.StatusOK, models.ScanPreviewResponse{ID: snap.ID, Status: snap.Status, Preview: &p})
	}
}

// DeleteScan returns a handler for DELETE /api/v1/scans/:id.
func DeleteScan(m *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.Delete(c.Param("id")); err != nil {
			abort(c, http.StatusNotFound, models.ErrCodeNotFound, "scan not found")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func lookup(c *gin.Context, m *jobs.Manager) (jobs.Snapshot, bool) {
	snap, err := m.Get(c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		abort(c, http.StatusNotFound, models.ErrCodeNotFound, "scan not found")
		return snap, false
	}
	return snap, true
}

func finished(c *gin.Context, m *jobs.Manager) (jobs.Snapshot, bool) {
	snap, ok := lookup(c, m)
	if !ok {
		return snap, false
	}
	switch snap.Status {
	case models.JobSucceeded:
		return snap, true
	case models.JobFailed:
		c.AbortWithStatusJSON(mapErrorToStatus(snap.Error), models.ErrorResponse{Error: snap.Error})
	default:
		abort(c, http.StatusConflict, "SCAN_NOT_FINISHED", "scan is still "+snap.Status)
	}
	return snap, false
}

// mapErrorToStatus picks the HTTP status for a failed scan.
func mapErrorToStatus(e *models.ErrorDetail) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case models.ErrCodePipelineFatal:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeFetch:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput, models.ErrCodeBlocked:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}

func validateStoreURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be an absolute http(s) URL")
	}
	return nil
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: message},
	})
}
