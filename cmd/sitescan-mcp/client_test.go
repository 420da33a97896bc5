package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyxxlabs/sitescan/models"
)

func TestWaitFinished(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		status := models.JobRunning
		if polls.Add(1) >= 3 {
			status = models.JobSucceeded
		}
		_ = json.NewEncoder(w).Encode(models.ScanStatusResponse{ID: "s1", Status: status})
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "k")
	st, err := c.waitFinished(context.Background(), "s1", time.Millisecond)
	if err != nil {
		t.Fatalf("waitFinished: %v", err)
	}
	if st.Status != models.JobSucceeded || polls.Load() != 3 {
		t.Errorf("status = %s after %d polls", st.Status, polls.Load())
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "scan not found"},
		})
	}))
	defer srv.Close()

	_, err := newAPIClient(srv.URL, "k").Preview(context.Background(), "nope")
	var ae *apiError
	if !errors.As(err, &ae) || ae.status != http.StatusNotFound || ae.detail.Code != models.ErrCodeNotFound {
		t.Errorf("err = %v", err)
	}
}
