package models

import "time"

// Section — узел дерева контента курса. ParentID == nil означает корневой раздел.
// Position — порядковый ключ среди соседей с тем же родителем; уникален в группе,
// допускаются «дырки».
type Section struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	ParentID  *int64    `json:"parent_id"`
	Title     string    `json:"title"`
	Content   *string   `json:"content"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateSectionRequest struct {
	CourseID int64   `json:"course_id"`
	ParentID *int64  `json:"parent_id"`
	Title    string  `json:"title"`
	Content  *string `json:"content"`
	Position *int    `json:"position"`
}

type UpdateSectionRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// MoveSectionRequest — новый родитель (nil = сделать корневым) и позиция
// (nil = в конец группы).
type MoveSectionRequest struct {
	ParentID *int64 `json:"parent_id"`
	Position *int   `json:"position"`
}

// ReorderItem — элемент пакетного реордеринга. Каждый элемент задаёт
// итогового родителя раздела (nil = корень), черновик клиента присылается целиком.
type ReorderItem struct {
	ID       int64  `json:"id"`
	Position int    `json:"position"`
	ParentID *int64 `json:"parent_id"`
}
