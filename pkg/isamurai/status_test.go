package isamurai

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJobStatus_Paths(t *testing.T) {
	var hits []string
	baseURL := newFakeAPI(t, func(r *mux.Router) {
		for _, p := range []string{pathSwapProgress, pathMultiSwapProgress} {
			r.HandleFunc(p, func(w http.ResponseWriter, req *http.Request) {
				hits = append(hits, req.URL.Path+"?"+req.URL.RawQuery)
				writeJSON(w, http.StatusOK, map[string]any{"status": "Processing"})
			}).Methods(http.MethodGet)
		}
	})

	c := newTestClient(t, baseURL)
	ctx := context.Background()

	_, err := c.GetJobStatus(ctx, "42")
	require.NoError(t, err)
	_, err = c.GetJobStatus(ctx, "43", WithMulti(true))
	require.NoError(t, err)
	_, err = c.GetJobStatus(ctx, "a b&c")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/swap-progress/?id=42",
		"/api/multi-swap-progress/?id=43",
		"/api/swap-progress/?id=a+b%26c",
	}, hits)
}

func TestClient_GetJobStatus_Decoding(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantID       JobID
		wantStatus   State
		wantProgress *float64
		wantOutput   string
		wantError    string
	}{
		{
			name:       "server omits id",
			body:       `{"status":"Pending"}`,
			wantID:     "requested",
			wantStatus: StatePending,
		},
		{
			name:         "numeric id and progress",
			body:         `{"id":981,"status":"Processing","progress_percentage":37.5}`,
			wantID:       "981",
			wantStatus:   StateProcessing,
			wantProgress: ptr(37.5),
		},
		{
			name:         "progress as string",
			body:         `{"status":"Processing","progress_percentage":"12"}`,
			wantID:       "requested",
			wantStatus:   StateProcessing,
			wantProgress: ptr(12.0),
		},
		{
			name:       "null fields",
			body:       `{"status":"Done","progress_percentage":null,"output_media_url":null,"error":null}`,
			wantID:     "requested",
			wantStatus: StateDone,
		},
		{
			name:         "completed with output",
			body:         `{"id":"j1","status":"complete","progress_percentage":100,"output_media_url":"https://cdn.example/out.mp4"}`,
			wantID:       "j1",
			wantStatus:   StateComplete,
			wantProgress: ptr(100.0),
			wantOutput:   "https://cdn.example/out.mp4",
		},
		{
			name:       "failed with reason",
			body:       `{"status":"Failed","error":"no face detected"}`,
			wantID:     "requested",
			wantStatus: StateFailed,
			wantError:  "no face detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			baseURL := newFakeAPI(t, func(r *mux.Router) {
				r.HandleFunc(pathSwapProgress, func(w http.ResponseWriter, req *http.Request) {
					w.Header().Set("Content-Type", "application/json")
					fmt.Fprint(w, tt.body)
				})
			})

			c := newTestClient(t, baseURL)
			status, err := c.GetJobStatus(context.Background(), "requested")
			require.NoError(t, err)

			assert.Equal(t, tt.wantID, status.ID)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Equal(t, tt.wantProgress, status.ProgressPercentage)
			assert.Equal(t, tt.wantOutput, status.OutputMediaURL)
			assert.Equal(t, tt.wantError, status.Error)
			assert.JSONEq(t, tt.body, string(status.Raw))
		})
	}
}

func TestClient_GetJobStatus_EmptyID(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1/api")

	_, err := c.GetJobStatus(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestClient_GetJobStatus_NotFound(t *testing.T) {
	baseURL := newFakeAPI(t, func(r *mux.Router) {
		r.HandleFunc(pathSwapProgress, func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Job not found"})
		})
	})

	c := newTestClient(t, baseURL)
	_, err := c.GetJobStatus(context.Background(), "404")

	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.EqualError(t, err, "isamurai: API error (404): Job not found")
}

func ptr(f float64) *float64 { return &f }
