// Package storage описывает общие ошибки хранилища учётных записей и прогресса.
// Реализации находятся в подпакетах repository (PostgreSQL) и memory.
package storage

import "errors"

var (
	// ErrNotFound - запись по ключу не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists - нарушено ограничение уникальности ключа.
	ErrAlreadyExists = errors.New("already exists")
)
