package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Patient - клинический случай симулируемого пациента.
// Поля витальных показателей опциональны: не у всех случаев они заданы.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Age       int       `json:"age"`
	Sex       string    `json:"sex"`
	Pronouns  string    `json:"pronouns"`

	HeightCm     *float64 `json:"height_cm,omitempty"`
	WeightKg     *float64 `json:"weight_kg,omitempty"`
	TemperatureC *float64 `json:"temperature_c,omitempty"`
	HeartRate    *int     `json:"heart_rate,omitempty"`

	PrimaryComplaint string `json:"primary_complaint"`
	Personality      string `json:"personality"`
	Symptoms         string `json:"symptoms"`
	MedicalHistory   string `json:"medical_history"`

	// Эталонный диагноз. До перехода в results клиенту не показывается.
	CorrectDiagnosis string `json:"correct_diagnosis,omitempty"`
}

// Обязательные ключи канонического представления случая.
var requiredPatientFields = []string{
	"id",
	"first_name",
	"last_name",
	"age",
	"sex",
	"pronouns",
	"primary_complaint",
	"personality",
	"symptoms",
	"medical_history",
	"correct_diagnosis",
}

// DecodePatient разбирает каноническое представление случая: JSON-объект
// с именованными полями. Позиционный массив - устаревший формат, он
// отклоняется как некорректный, а не угадывается по порядку элементов.
func DecodePatient(data []byte) (*Patient, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: пустое тело случая", ErrMalformedPatient)
	}
	if trimmed[0] == '[' {
		return nil, fmt.Errorf("%w: позиционный массив вместо объекта с именованными полями", ErrMalformedPatient)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatient, err)
	}
	for _, field := range requiredPatientFields {
		if _, ok := raw[field]; !ok {
			return nil, fmt.Errorf("%w: отсутствует поле %q", ErrMalformedPatient, field)
		}
	}

	var p Patient
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPatient, err)
	}
	if p.Age <= 0 {
		return nil, fmt.Errorf("%w: недопустимый возраст %d", ErrMalformedPatient, p.Age)
	}
	return &p, nil
}

// Redacted возвращает копию случая без эталонного диагноза.
func (p Patient) Redacted() Patient {
	p.CorrectDiagnosis = ""
	return p
}

// FullName возвращает полное имя пациента.
func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ContextString отдает случай дословно, поле за полем, для промптов
// оракулов. Каждое значение появляется ровно один раз.
func (p Patient) ContextString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %s\n", p.FullName())
	fmt.Fprintf(&b, "Age: %d\n", p.Age)
	fmt.Fprintf(&b, "Sex: %s\n", p.Sex)
	fmt.Fprintf(&b, "Pronouns: %s\n", p.Pronouns)
	if p.HeightCm != nil {
		fmt.Fprintf(&b, "Height: %.1f cm\n", *p.HeightCm)
	}
	if p.WeightKg != nil {
		fmt.Fprintf(&b, "Weight: %.1f kg\n", *p.WeightKg)
	}
	if p.TemperatureC != nil {
		fmt.Fprintf(&b, "Temperature: %.1f C\n", *p.TemperatureC)
	}
	if p.HeartRate != nil {
		fmt.Fprintf(&b, "Heart rate: %d bpm\n", *p.HeartRate)
	}
	fmt.Fprintf(&b, "Primary complaint: %s\n", p.PrimaryComplaint)
	fmt.Fprintf(&b, "Personality: %s\n", p.Personality)
	fmt.Fprintf(&b, "Symptoms: %s\n", p.Symptoms)
	fmt.Fprintf(&b, "Medical history: %s", p.MedicalHistory)
	return b.String()
}
