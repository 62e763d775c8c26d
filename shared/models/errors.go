package models

import "errors"

// Стандартные ошибки уровня приложения.
var (
	// Токены и доступ
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
	ErrUnauthorized   = errors.New("unauthorized")

	// Случаи и сессии
	ErrMalformedPatient  = errors.New("malformed patient payload")
	ErrPatientNotFound   = errors.New("patient not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrCaseNotLoaded     = errors.New("no case is loaded for this session")
	ErrCaseAlreadyActive = errors.New("a case is already in progress")
	ErrLoadInProgress    = errors.New("case load is already in progress")
	ErrChatInProgress    = errors.New("a chat exchange is already in flight")
	ErrSubmitInProgress  = errors.New("evaluation is already in progress")
	ErrSessionNotActive  = errors.New("session is not in the active state")
	ErrSessionNotInIntro = errors.New("session is not in the intro state")

	// Диктовка
	ErrDictationUnsupported = errors.New("dictation capability is not available")
	ErrDictationBusy        = errors.New("a dictation is already in flight")

	// Записи
	ErrProfileNotFound = errors.New("profile not found")

	// Общие
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrUpstreamAI     = errors.New("ai provider error")
)
