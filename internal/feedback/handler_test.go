package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intervue/backend/internal/middleware"
	"github.com/intervue/backend/internal/models"
)

type memReader struct {
	rows map[[2]uuid.UUID]*models.Feedback
	err  error
}

func (m *memReader) GetByInterviewAndUser(_ context.Context, interviewID, userID uuid.UUID) (*models.Feedback, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rows[[2]uuid.UUID{interviewID, userID}], nil
}

type stubSigner struct{}

func (stubSigner) TranscriptDownloadURL(_ context.Context, key string) (string, error) {
	return "https://signed.example/" + key, nil
}

func router(h *Handler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(middleware.ContextUserID, userID)
		}
		c.Next()
	})
	r.GET("/interviews/:id/feedback", h.GetForInterview)
	r.GET("/interviews/:id/feedback/transcript", h.GetTranscriptURL)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestGetForInterview(t *testing.T) {
	userID, interviewID := uuid.New(), uuid.New()
	f := &models.Feedback{ID: uuid.New(), InterviewID: interviewID, UserID: userID, TotalScore: 64, FinalAssessment: "fine"}
	repo := &memReader{rows: map[[2]uuid.UUID]*models.Feedback{{interviewID, userID}: f}}
	r := router(NewHandler(repo, nil), userID)

	w := get(r, "/interviews/"+interviewID.String()+"/feedback")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.Feedback `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, f.ID, body.Data.ID)
	assert.Equal(t, 64, body.Data.TotalScore)

	assert.Equal(t, http.StatusNotFound, get(r, "/interviews/"+uuid.NewString()+"/feedback").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/interviews/nope/feedback").Code)
}

func TestGetForInterviewErrors(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, http.StatusUnauthorized, get(router(NewHandler(&memReader{}, nil), uuid.Nil), "/interviews/"+id+"/feedback").Code)
	assert.Equal(t, http.StatusInternalServerError, get(router(NewHandler(&memReader{err: errors.New("db")}, nil), uuid.New()), "/interviews/"+id+"/feedback").Code)
}

func TestGetTranscriptURL(t *testing.T) {
	userID, interviewID := uuid.New(), uuid.New()
	f := &models.Feedback{ID: uuid.New(), InterviewID: interviewID, UserID: userID}
	repo := &memReader{rows: map[[2]uuid.UUID]*models.Feedback{{interviewID, userID}: f}}
	path := "/interviews/" + interviewID.String() + "/feedback/transcript"

	assert.Equal(t, http.StatusNotFound, get(router(NewHandler(repo, stubSigner{}), userID), path).Code)

	f.TranscriptKey = "transcripts/a/b.json"
	assert.Equal(t, http.StatusNotFound, get(router(NewHandler(repo, nil), userID), path).Code)

	w := get(router(NewHandler(repo, stubSigner{}), userID), path)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://signed.example/transcripts/a/b.json")
}
