package models

import "errors"

// Ошибки доменного уровня. Обработчики сопоставляют их с HTTP-статусами,
// детали причин наружу не передаются.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
	ErrForbidden           = errors.New("insufficient privilege")
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	ErrRecordNotFound      = errors.New("record not found")
	ErrWriteConflict       = errors.New("write conflict")
	ErrInvalidPlan         = errors.New("plan name is required")
)
