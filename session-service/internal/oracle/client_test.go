package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"imitate-server/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func patientJSON(id uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"id":                id.String(),
		"first_name":        "Margaret",
		"last_name":         "Okafor",
		"age":               58,
		"sex":               "female",
		"pronouns":          "she/her",
		"primary_complaint": "Chest discomfort",
		"personality":       "Stoic",
		"symptoms":          "Pressure on exertion",
		"medical_history":   "Hypertension",
		"correct_diagnosis": "Stable angina",
	}
}

func TestClient_RandomPatient(t *testing.T) {
	t.Run("успех", func(t *testing.T) {
		id := uuid.New()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/patients/random", r.URL.Path)
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"patient": patientJSON(id)})
		}))
		defer srv.Close()

		client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
		patient, err := client.RandomPatient(context.Background(), "tok-123")
		require.NoError(t, err)
		assert.Equal(t, id, patient.ID)
		assert.Equal(t, "Margaret", patient.FirstName)
		assert.Equal(t, "Stable angina", patient.CorrectDiagnosis)
	})

	t.Run("не-2xx статус - ошибка", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
		_, err := client.RandomPatient(context.Background(), "tok")
		assert.Error(t, err)
	})

	t.Run("позиционный массив отклоняется", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"patient": ["Margaret", "Okafor", 58]}`))
		}))
		defer srv.Close()

		client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
		_, err := client.RandomPatient(context.Background(), "tok")
		assert.ErrorIs(t, err, models.ErrMalformedPatient)
	})

	t.Run("отсутствующее обязательное поле отклоняется", func(t *testing.T) {
		id := uuid.New()
		broken := patientJSON(id)
		delete(broken, "correct_diagnosis")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"patient": broken})
		}))
		defer srv.Close()

		client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
		_, err := client.RandomPatient(context.Background(), "tok")
		assert.ErrorIs(t, err, models.ErrMalformedPatient)
	})
}

func TestClient_Chat(t *testing.T) {
	t.Run("успех", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat", r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body["prompt"], "Does it hurt?")
			_ = json.NewEncoder(w).Encode(map[string]string{"reply": "Only when I breathe deeply."})
		}))
		defer srv.Close()

		client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
		reply, err := client.Chat(context.Background(), "Does it hurt?")
		require.NoError(t, err)
		assert.Equal(t, "Only when I breathe deeply.", reply)
	})

	t.Run("пустой ответ - ошибка", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"reply": ""})
		}))
		defer srv.Close()

		client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
		_, err := client.Chat(context.Background(), "Hello")
		assert.Error(t, err)
	})
}

func TestClient_Evaluate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/evaluate", r.URL.Path)
		var req models.EvaluationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "angina", req.SubmittedDiagnosis)
		assert.Equal(t, 550, req.TimeLeft)
		_ = json.NewEncoder(w).Encode(models.EvaluationResult{Evaluation: "Good reasoning", Score: 41})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
	result, err := client.Evaluate(context.Background(), models.EvaluationRequest{
		SubmittedDiagnosis: "angina",
		SubmittedAftercare: "rest",
		TimeLeft:           550,
	})
	require.NoError(t, err)
	assert.Equal(t, 41, result.Score)
	assert.Equal(t, "Good reasoning", result.Evaluation)
}

func TestClient_Records(t *testing.T) {
	var gotScorePath, gotMatchPath string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/addScore":
			gotScorePath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			var body map[string]int
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 41, body["score"])
		case "/addMatch":
			gotMatchPath = r.URL.Path
			var record models.MatchRecord
			require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
			assert.Equal(t, 41, record.Score)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, client.AddScore(context.Background(), "tok-9", 41))
	require.NoError(t, client.AddMatch(context.Background(), "tok-9", models.MatchRecord{Score: 41}))

	assert.Equal(t, "/addScore", gotScorePath)
	assert.Equal(t, "/addMatch", gotMatchPath)
	assert.Equal(t, "Bearer tok-9", gotAuth)
}
