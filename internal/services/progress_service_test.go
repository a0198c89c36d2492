package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"eduflow/internal/coursetree"
	"eduflow/internal/models"
)

// Мок-репозиторий прогресса поверх мок-хранилища разделов.
type memProgressRepo struct {
	sections *memSectionRepo
	visited  map[[2]int64]*time.Time // (user, section) -> visited_at; nil = строка есть, отметка снята
	headers  map[[2]int64]*models.CourseProgress
}

func newMemProgressRepo(sections *memSectionRepo) *memProgressRepo {
	return &memProgressRepo{
		sections: sections,
		visited:  make(map[[2]int64]*time.Time),
		headers:  make(map[[2]int64]*models.CourseProgress),
	}
}

func (m *memProgressRepo) EnsureCourseProgress(_ context.Context, userID, courseID int64) (*models.CourseProgress, error) {
	key := [2]int64{userID, courseID}
	if cp, ok := m.headers[key]; ok {
		cp.LastAccessedAt = time.Now()
		out := *cp
		return &out, nil
	}
	cp := &models.CourseProgress{
		UserID: userID, CourseID: courseID,
		StartedAt: time.Now(), LastAccessedAt: time.Now(),
	}
	m.headers[key] = cp
	out := *cp
	return &out, nil
}

func (m *memProgressRepo) TouchCourseProgress(ctx context.Context, userID, courseID int64, lastSectionID *int64) error {
	if _, err := m.EnsureCourseProgress(ctx, userID, courseID); err != nil {
		return err
	}
	if lastSectionID != nil {
		m.headers[[2]int64{userID, courseID}].LastSectionID = lastSectionID
	}
	return nil
}

func (m *memProgressRepo) VisitedAt(_ context.Context, userID, courseID int64) (map[int64]time.Time, error) {
	out := make(map[int64]time.Time)
	for key, at := range m.visited {
		if key[0] != userID || at == nil {
			continue
		}
		if s, ok := m.sections.sections[key[1]]; ok && s.CourseID == courseID {
			out[key[1]] = *at
		}
	}
	return out, nil
}

func (m *memProgressRepo) ToggleVisited(_ context.Context, userID, sectionID int64, visited bool) (*models.SectionProgress, error) {
	key := [2]int64{userID, sectionID}
	if !visited {
		m.visited[key] = nil
		return &models.SectionProgress{UserID: userID, SectionID: sectionID}, nil
	}
	if at := m.visited[key]; at != nil {
		// уже посещён — состояние не меняется
		return &models.SectionProgress{UserID: userID, SectionID: sectionID, Visited: true, VisitedAt: at}, nil
	}
	now := time.Now()
	m.visited[key] = &now
	return &models.SectionProgress{UserID: userID, SectionID: sectionID, Visited: true, VisitedAt: &now}, nil
}

func (m *memProgressRepo) Reset(_ context.Context, userID, courseID int64) error {
	for key := range m.visited {
		if key[0] != userID {
			continue
		}
		if s, ok := m.sections.sections[key[1]]; ok && s.CourseID == courseID {
			delete(m.visited, key)
		}
	}
	delete(m.headers, [2]int64{userID, courseID})
	return nil
}

func newProgressSvc(sections *memSectionRepo) (ProgressService, *memProgressRepo) {
	repo := newMemProgressRepo(sections)
	return NewProgressService(repo, sections, newMemCourseRepo(10)), repo
}

func TestProgressService_PercentScenario(t *testing.T) {
	sections := seedRepo() // 4 раздела в курсе 10
	svc, _ := newProgressSvc(sections)
	ctx := context.Background()

	cp, err := svc.CourseProgress(ctx, 7, 10)
	if err != nil {
		t.Fatalf("первый запрос прогресса: %v", err)
	}
	if cp.Percent != 0 || cp.VisitedCount != 0 {
		t.Fatalf("свежий курс: ожидалось 0%%, получено %v", cp.Percent)
	}

	// 2 из 4 -> 50
	for _, id := range []int64{1, 3} {
		if _, err := svc.ToggleVisited(ctx, 7, id, true); err != nil {
			t.Fatalf("отметка раздела %d: %v", id, err)
		}
	}
	cp, _ = svc.CourseProgress(ctx, 7, 10)
	if cp.Percent != 50 {
		t.Fatalf("2 из 4 разделов: ожидалось 50, получено %v", cp.Percent)
	}
	if cp.TotalSections != 4 || cp.VisitedCount != 2 {
		t.Fatalf("счётчики: ожидалось 2/4, получено %d/%d", cp.VisitedCount, cp.TotalSections)
	}

	// все 4 -> 100
	for _, id := range []int64{2, 4} {
		_, _ = svc.ToggleVisited(ctx, 7, id, true)
	}
	cp, _ = svc.CourseProgress(ctx, 7, 10)
	if cp.Percent != 100 {
		t.Fatalf("все разделы посещены: ожидалось 100, получено %v", cp.Percent)
	}
}

func TestProgressService_ToggleIdempotent(t *testing.T) {
	sections := seedRepo()
	svc, repo := newProgressSvc(sections)
	ctx := context.Background()

	first, err := svc.ToggleVisited(ctx, 7, 1, true)
	if err != nil {
		t.Fatalf("первая отметка: %v", err)
	}
	second, err := svc.ToggleVisited(ctx, 7, 1, true)
	if err != nil {
		t.Fatalf("повторная отметка: %v", err)
	}
	if !second.Visited || !second.VisitedAt.Equal(*first.VisitedAt) {
		t.Fatal("повторная отметка изменила наблюдаемое состояние")
	}

	cp, _ := svc.CourseProgress(ctx, 7, 10)
	if cp.VisitedCount != 1 {
		t.Fatalf("после двойной отметки ожидался 1 посещённый, получено %d", cp.VisitedCount)
	}

	// снятие отметки обнуляет флаг, но строка остаётся
	off, err := svc.ToggleVisited(ctx, 7, 1, false)
	if err != nil {
		t.Fatalf("снятие отметки: %v", err)
	}
	if off.Visited || off.VisitedAt != nil {
		t.Fatal("после снятия отметки флаг и таймстемп должны быть пустыми")
	}
	if _, ok := repo.visited[[2]int64{7, 1}]; !ok {
		t.Fatal("строка посещения не должна удаляться при снятии отметки")
	}
}

func TestProgressService_SectionProgressOrder(t *testing.T) {
	sections := seedRepo()
	svc, _ := newProgressSvc(sections)
	ctx := context.Background()

	_, _ = svc.ToggleVisited(ctx, 7, 3, true)

	items, err := svc.SectionProgress(ctx, 7, 10)
	if err != nil {
		t.Fatalf("чеклист разделов: %v", err)
	}
	// линейный порядок чтения: A, C, D, B
	want := []int64{1, 3, 4, 2}
	if len(items) != len(want) {
		t.Fatalf("ожидалось %d разделов, получено %d", len(want), len(items))
	}
	for i, it := range items {
		if it.ID != want[i] {
			t.Fatalf("порядок чеклиста: позиция %d — ожидался id %d, получен %d", i, want[i], it.ID)
		}
	}
	if !items[1].Visited || items[1].VisitedAt == nil {
		t.Fatal("раздел C должен быть отмечен посещённым")
	}
	if items[0].Visited {
		t.Fatal("раздел A не отмечался")
	}
}

func TestProgressService_Reset(t *testing.T) {
	sections := seedRepo()
	svc, _ := newProgressSvc(sections)
	ctx := context.Background()

	_, _ = svc.ToggleVisited(ctx, 7, 1, true)
	_, _ = svc.ToggleVisited(ctx, 7, 2, true)

	if err := svc.Reset(ctx, 7, 10); err != nil {
		t.Fatalf("сброс прогресса: %v", err)
	}

	cp, err := svc.CourseProgress(ctx, 7, 10)
	if err != nil {
		t.Fatalf("прогресс после сброса: %v", err)
	}
	if cp.Percent != 0 || cp.VisitedCount != 0 || cp.LastSectionID != nil {
		t.Fatalf("после сброса ожидалось чистое состояние, получено %+v", cp)
	}

	items, _ := svc.SectionProgress(ctx, 7, 10)
	for _, it := range items {
		if it.Visited {
			t.Fatalf("после сброса раздел %d не должен быть отмечен", it.ID)
		}
	}
}

func TestProgressService_RejectsUnknown(t *testing.T) {
	sections := seedRepo()
	svc, _ := newProgressSvc(sections)
	ctx := context.Background()

	if _, err := svc.ToggleVisited(ctx, 7, 777, true); !errors.Is(err, coursetree.ErrNotFound) {
		t.Fatalf("отметка несуществующего раздела: ожидался ErrNotFound, получено %v", err)
	}
	if _, err := svc.CourseProgress(ctx, 7, 555); !errors.Is(err, coursetree.ErrNotFound) {
		t.Fatalf("прогресс несуществующего курса: ожидался ErrNotFound, получено %v", err)
	}
}
