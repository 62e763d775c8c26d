package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPatientJSON() map[string]interface{} {
	return map[string]interface{}{
		"id":                uuid.New().String(),
		"first_name":        "Daniel",
		"last_name":         "Reyes",
		"age":               24,
		"sex":               "male",
		"pronouns":          "he/him",
		"height_cm":         178.0,
		"heart_rate":        108,
		"primary_complaint": "Sharp pain in the lower right abdomen",
		"personality":       "Anxious, talkative",
		"symptoms":          "Migrating periumbilical pain, nausea, low-grade fever",
		"medical_history":   "No chronic conditions",
		"correct_diagnosis": "Acute appendicitis",
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestDecodePatient(t *testing.T) {
	t.Run("канонический объект разбирается", func(t *testing.T) {
		patient, err := DecodePatient(mustMarshal(t, validPatientJSON()))
		require.NoError(t, err)
		assert.Equal(t, "Daniel", patient.FirstName)
		assert.Equal(t, 24, patient.Age)
		require.NotNil(t, patient.HeightCm)
		assert.InDelta(t, 178.0, *patient.HeightCm, 0.01)
		require.NotNil(t, patient.HeartRate)
		assert.Equal(t, 108, *patient.HeartRate)
		// Незаданные витальные показатели остаются nil, а не нулями
		assert.Nil(t, patient.WeightKg)
		assert.Nil(t, patient.TemperatureC)
	})

	t.Run("позиционный массив отклоняется", func(t *testing.T) {
		_, err := DecodePatient([]byte(`["Daniel", "Reyes", 24, "male"]`))
		assert.ErrorIs(t, err, ErrMalformedPatient)
	})

	t.Run("массив с ведущими пробелами тоже отклоняется", func(t *testing.T) {
		_, err := DecodePatient([]byte("  \n\t[1, 2, 3]"))
		assert.ErrorIs(t, err, ErrMalformedPatient)
	})

	t.Run("отсутствие обязательного поля - ошибка", func(t *testing.T) {
		for _, field := range []string{"id", "age", "primary_complaint", "correct_diagnosis"} {
			broken := validPatientJSON()
			delete(broken, field)
			_, err := DecodePatient(mustMarshal(t, broken))
			assert.ErrorIs(t, err, ErrMalformedPatient, "поле %s", field)
		}
	})

	t.Run("недопустимый возраст", func(t *testing.T) {
		broken := validPatientJSON()
		broken["age"] = 0
		_, err := DecodePatient(mustMarshal(t, broken))
		assert.ErrorIs(t, err, ErrMalformedPatient)
	})

	t.Run("пустое тело", func(t *testing.T) {
		_, err := DecodePatient([]byte("  "))
		assert.ErrorIs(t, err, ErrMalformedPatient)
	})

	t.Run("битый JSON", func(t *testing.T) {
		_, err := DecodePatient([]byte(`{"first_name": `))
		assert.ErrorIs(t, err, ErrMalformedPatient)
	})
}

func TestPatient_Redacted(t *testing.T) {
	patient, err := DecodePatient(mustMarshal(t, validPatientJSON()))
	require.NoError(t, err)

	redacted := patient.Redacted()
	assert.Empty(t, redacted.CorrectDiagnosis)
	// Исходный случай не мутирует
	assert.Equal(t, "Acute appendicitis", patient.CorrectDiagnosis)
	assert.Equal(t, patient.FirstName, redacted.FirstName)
}

func TestPatient_ContextString(t *testing.T) {
	patient, err := DecodePatient(mustMarshal(t, validPatientJSON()))
	require.NoError(t, err)

	context := patient.ContextString()

	// Каждое заданное поле появляется в контексте ровно один раз
	for _, value := range []string{
		"Daniel Reyes",
		"24",
		"male",
		"he/him",
		"178.0 cm",
		"108 bpm",
		"Sharp pain in the lower right abdomen",
		"Anxious, talkative",
		"Migrating periumbilical pain, nausea, low-grade fever",
		"No chronic conditions",
	} {
		assert.Equal(t, 1, strings.Count(context, value), "значение %q", value)
	}

	// Диагноз в контекст беседы не попадает
	assert.NotContains(t, context, "Acute appendicitis")
	// Незаданные показатели не рисуют пустых строк
	assert.NotContains(t, context, "Weight:")
	assert.NotContains(t, context, "Temperature:")
}
