package coursetree

import (
	"fmt"

	"eduflow/internal/models"
)

// ValidateMove проверяет перемещение раздела под нового родителя
// (newParentID == nil — поднять в корень). Проверки идут строго по порядку:
// существование, принадлежность курсу, цикл. Первый провал — ошибка своего вида.
func ValidateMove(records []models.Section, sectionID int64, newParentID *int64) error {
	byID := indexRecords(records)

	sec, ok := byID[sectionID]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, sectionID)
	}
	if newParentID == nil {
		return nil
	}

	parent, ok := byID[*newParentID]
	if !ok {
		return fmt.Errorf("%w: родитель id=%d", ErrNotFound, *newParentID)
	}
	if parent.CourseID != sec.CourseID {
		return fmt.Errorf("%w: раздел из курса %d, родитель из курса %d",
			ErrCrossCourse, sec.CourseID, parent.CourseID)
	}

	parents := currentParents(records)
	if isAncestor(parents, sectionID, *newParentID, len(records)) {
		return fmt.Errorf("%w: раздел %d нельзя перемещать в собственное поддерево (родитель %d)",
			ErrCycle, sectionID, *newParentID)
	}
	return nil
}

// ValidateBatch проверяет пакет реордеринга целиком: каждый элемент по тем же
// правилам, что и одиночное перемещение, но цикл ищется в предполагаемом
// итоговом состоянии — карте родителей после наложения всего пакета на текущее.
// Наивная поэлементная проверка по устаревшему состоянию пропустила бы цикл,
// собранный несколькими элементами сразу. Любой провал отклоняет весь пакет.
func ValidateBatch(records []models.Section, items []models.ReorderItem) error {
	byID := indexRecords(records)

	// итоговая карта родителей: текущее состояние, поверх — пакет
	merged := currentParents(records)
	for _, it := range items {
		if it.ParentID == nil {
			delete(merged, it.ID)
		} else {
			merged[it.ID] = *it.ParentID
		}
	}

	for i, it := range items {
		sec, ok := byID[it.ID]
		if !ok {
			return fmt.Errorf("%w: элемент %d: %w: id=%d", ErrInvalidBatch, i, ErrNotFound, it.ID)
		}
		if it.Position < 0 {
			return fmt.Errorf("%w: элемент %d: %w: отрицательная позиция %d",
				ErrInvalidBatch, i, ErrValidation, it.Position)
		}
		if it.ParentID != nil {
			parent, ok := byID[*it.ParentID]
			if !ok {
				return fmt.Errorf("%w: элемент %d: %w: родитель id=%d",
					ErrInvalidBatch, i, ErrNotFound, *it.ParentID)
			}
			if parent.CourseID != sec.CourseID {
				return fmt.Errorf("%w: элемент %d: %w", ErrInvalidBatch, i, ErrCrossCourse)
			}
			if *it.ParentID == it.ID || isAncestor(merged, it.ID, *it.ParentID, len(records)) {
				return fmt.Errorf("%w: элемент %d: %w", ErrInvalidBatch, i, ErrCycle)
			}
		}
	}

	// уникальность позиций в итоговых группах соседей
	type slot struct {
		parent int64 // 0 при root=true
		root   bool
		pos    int
	}
	final := make(map[int64]slot, len(records))
	for _, rec := range records {
		s := slot{pos: rec.Position}
		if pid, ok := merged[rec.ID]; ok {
			s.parent = pid
		} else {
			s.root = true
		}
		final[rec.ID] = s
	}
	for _, it := range items {
		s := final[it.ID]
		s.pos = it.Position
		final[it.ID] = s
	}
	seen := make(map[slot]int64, len(final))
	for id, s := range final {
		if other, dup := seen[s]; dup {
			return fmt.Errorf("%w: %w: разделы %d и %d получают одинаковую позицию %d у одного родителя",
				ErrInvalidBatch, ErrValidation, other, id, s.pos)
		}
		seen[s] = id
	}
	return nil
}

// NextPosition — позиция для вставки в конец группы соседей:
// max+1 либо 0, если соседей нет.
func NextPosition(records []models.Section, parentID *int64) int {
	next := 0
	for _, rec := range records {
		if !sameParent(rec.ParentID, parentID) {
			continue
		}
		if rec.Position >= next {
			next = rec.Position + 1
		}
	}
	return next
}

// Percent — доля посещённых разделов в процентах. Курс без разделов — 0, не ошибка.
func Percent(visited, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(visited) / float64(total) * 100
}

func indexRecords(records []models.Section) map[int64]models.Section {
	byID := make(map[int64]models.Section, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	return byID
}

func currentParents(records []models.Section) map[int64]int64 {
	parents := make(map[int64]int64, len(records))
	for _, rec := range records {
		if rec.ParentID != nil {
			parents[rec.ID] = *rec.ParentID
		}
	}
	return parents
}

// isAncestor — является ли section предком candidate (или самим candidate)
// в карте родителей. Шаги ограничены размером набора: битая карта с циклом
// не зациклит проверку.
func isAncestor(parents map[int64]int64, section, candidate int64, limit int) bool {
	cur := candidate
	for steps := 0; steps <= limit; steps++ {
		if cur == section {
			return true
		}
		next, ok := parents[cur]
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
