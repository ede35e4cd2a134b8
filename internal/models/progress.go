package models

import "time"

// Progress хранит позицию просмотра контента пользователем.
// На пару (UserUID, ContentID) существует не более одной записи.
type Progress struct {
	UserUID   string    `json:"principalId"`
	ContentID string    `json:"contentId"`
	Offset    int       `json:"offset"`
	UpdatedAt time.Time `json:"updatedAt"`
}
