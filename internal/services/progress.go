package services

import (
	"context"
	"fmt"

	"eduflow/internal/coursetree"
	"eduflow/internal/logger"
	"eduflow/internal/models"
	"eduflow/internal/repository"

	"go.uber.org/zap"
)

// ProgressService — прогресс пользователя по курсу. Процент всегда выводится
// из строк посещений на момент чтения и нигде не кэшируется.
type ProgressService interface {
	CourseProgress(ctx context.Context, userID, courseID int64) (*models.CourseProgress, error)
	SectionProgress(ctx context.Context, userID, courseID int64) ([]models.SectionProgressItem, error)
	ToggleVisited(ctx context.Context, userID, sectionID int64, visited bool) (*models.SectionProgress, error)
	Reset(ctx context.Context, userID, courseID int64) error
}

type progressService struct {
	progress repository.ProgressRepo
	sections repository.SectionRepo
	courses  repository.CourseRepo
}

func NewProgressService(progress repository.ProgressRepo, sections repository.SectionRepo, courses repository.CourseRepo) ProgressService {
	return &progressService{progress: progress, sections: sections, courses: courses}
}

func (s *progressService) requireCourse(ctx context.Context, courseID int64) error {
	exists, err := s.courses.Exists(ctx, courseID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: курс id=%d", coursetree.ErrNotFound, courseID)
	}
	return nil
}

// CourseProgress возвращает шапку прогресса с производным процентом.
// Первый запрос пользователя к курсу создаёт шапку (0%).
func (s *progressService) CourseProgress(ctx context.Context, userID, courseID int64) (*models.CourseProgress, error) {
	if err := s.requireCourse(ctx, courseID); err != nil {
		return nil, err
	}

	cp, err := s.progress.EnsureCourseProgress(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	records, err := s.sections.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	visited, err := s.progress.VisitedAt(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	cp.TotalSections = len(records)
	cp.VisitedCount = len(visited)
	cp.Percent = coursetree.Percent(cp.VisitedCount, cp.TotalSections)
	return cp, nil
}

// SectionProgress — каждый раздел курса в линейном порядке чтения с отметкой
// посещения; то же множество посещений, что и у процента.
func (s *progressService) SectionProgress(ctx context.Context, userID, courseID int64) ([]models.SectionProgressItem, error) {
	if err := s.requireCourse(ctx, courseID); err != nil {
		return nil, err
	}

	records, err := s.sections.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	visited, err := s.progress.VisitedAt(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	tree := coursetree.Build(records)
	if orphans := tree.Orphans(); len(orphans) > 0 {
		logger.WithCtx(ctx).Warn("Дерево курса содержит разделы с битой ссылкой на родителя",
			zap.Int64("course_id", courseID), zap.Int64s("orphan_ids", orphans))
	}

	flat := tree.Flatten()
	items := make([]models.SectionProgressItem, 0, len(flat))
	for _, n := range flat {
		item := models.SectionProgressItem{
			ID:       n.Section.ID,
			Title:    n.Section.Title,
			ParentID: n.Section.ParentID,
			Position: n.Section.Position,
		}
		if at, ok := visited[n.Section.ID]; ok {
			item.Visited = true
			visitedAt := at
			item.VisitedAt = &visitedAt
		}
		items = append(items, item)
	}
	return items, nil
}

// ToggleVisited — идемпотентное переключение отметки. Повторный вызов с тем же
// значением оставляет то же наблюдаемое состояние.
func (s *progressService) ToggleVisited(ctx context.Context, userID, sectionID int64, visited bool) (*models.SectionProgress, error) {
	log := logger.WithCtx(ctx)

	sec, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, sectionID)
	}

	sp, err := s.progress.ToggleVisited(ctx, userID, sectionID, visited)
	if err != nil {
		return nil, err
	}

	var last *int64
	if visited {
		last = &sectionID
	}
	if err := s.progress.TouchCourseProgress(ctx, userID, sec.CourseID, last); err != nil {
		return nil, err
	}

	log.Info("Отметка посещения переключена",
		zap.Int64("user_id", userID), zap.Int64("section_id", sectionID), zap.Bool("visited", visited))
	return sp, nil
}

// Reset стирает прогресс курса; следующий CourseProgress начнёт с чистых 0%.
func (s *progressService) Reset(ctx context.Context, userID, courseID int64) error {
	if err := s.requireCourse(ctx, courseID); err != nil {
		return err
	}
	if err := s.progress.Reset(ctx, userID, courseID); err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("Прогресс курса сброшен",
		zap.Int64("user_id", userID), zap.Int64("course_id", courseID))
	return nil
}
