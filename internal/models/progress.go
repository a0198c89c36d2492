package models

import "time"

// CourseProgress — производное состояние прохождения курса пользователем.
// Процент не хранится: считается от множества посещённых разделов на каждом чтении.
type CourseProgress struct {
	UserID         int64      `json:"user_id"`
	CourseID       int64      `json:"course_id"`
	Percent        float64    `json:"percent"`
	LastSectionID  *int64     `json:"last_section_id"`
	StartedAt      time.Time  `json:"started_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	VisitedCount   int        `json:"visited_count"`
	TotalSections  int        `json:"total_sections"`
}

// SectionProgress — факт посещения раздела пользователем.
// Строка создаётся лениво при первом переключении и не удаляется по одной,
// только полным сбросом прогресса курса.
type SectionProgress struct {
	UserID    int64      `json:"user_id"`
	SectionID int64      `json:"section_id"`
	Visited   bool       `json:"visited"`
	VisitedAt *time.Time `json:"visited_at"`
}

// SectionProgressItem — раздел в линейном порядке чтения с отметкой посещения.
type SectionProgressItem struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	ParentID  *int64     `json:"parent_id"`
	Position  int        `json:"position"`
	Visited   bool       `json:"visited"`
	VisitedAt *time.Time `json:"visited_at"`
}

type ToggleVisitedRequest struct {
	Visited bool `json:"visited"`
}
