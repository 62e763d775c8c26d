package models

import (
	"time"

	"github.com/google/uuid"
)

// TurnAuthor - автор реплики транскрипта.
type TurnAuthor string

const (
	TurnAuthorUser    TurnAuthor = "user"
	TurnAuthorPatient TurnAuthor = "simulated-patient"
)

// Turn - одна реплика транскрипта сессии.
type Turn struct {
	ID        int64      `json:"id"`
	Author    TurnAuthor `json:"author"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
}

// SessionState - состояние практической сессии.
type SessionState string

const (
	StateNoCase     SessionState = "no-case"
	StateIntro      SessionState = "intro"
	StateActive     SessionState = "active"
	StateEvaluating SessionState = "evaluating"
	StateResults    SessionState = "results"
)

// EvaluationRequest - запрос оценки завершенного случая.
type EvaluationRequest struct {
	PatientData        Patient `json:"patientData"`
	ChatHistory        string  `json:"chatHistory"`
	SubmittedDiagnosis string  `json:"submittedDiagnosis"`
	SubmittedAftercare string  `json:"submittedAftercare"`
	TimeLeft           int     `json:"timeLeft"`
}

// EvaluationResult - вердикт оценщика.
type EvaluationResult struct {
	Evaluation string `json:"evaluation"`
	Score      int    `json:"score"`
}

// MatchRecord - полная запись сыгранного случая для истории.
type MatchRecord struct {
	PatientInfo        Patient `json:"patient_info"`
	SubmittedDiagnosis string  `json:"submitted_diagnosis"`
	SubmittedAftercare string  `json:"submitted_aftercare"`
	Score              int     `json:"score"`
	Feedback           string  `json:"feedback"`
	Time               int     `json:"time"`
}

// Profile - профиль пользователя с накопленным счетом.
type Profile struct {
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username"`
	TotalScore int       `json:"total_score"`
}

// LeaderboardEntry - строка таблицы лидеров.
type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	Username   string `json:"username"`
	TotalScore int    `json:"total_score"`
}
