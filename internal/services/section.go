package services

import (
	"context"
	"fmt"
	"strings"

	"eduflow/internal/coursetree"
	"eduflow/internal/logger"
	"eduflow/internal/models"
	"eduflow/internal/repository"

	"go.uber.org/zap"
)

// SectionService — дерево разделов курса и все структурные операции над ним.
// Чтения собирают дерево заново на каждый вызов; записи выполняются внутри
// курсовой транзакции с перечитыванием актуального состояния перед валидацией.
type SectionService interface {
	Tree(ctx context.Context, courseID int64) (*coursetree.Tree, error)
	Flattened(ctx context.Context, courseID int64) ([]models.Section, error)
	Breadcrumb(ctx context.Context, sectionID int64) ([]coursetree.Crumb, error)
	Neighbors(ctx context.Context, sectionID int64) (prev, next *models.Section, err error)
	Create(ctx context.Context, req models.CreateSectionRequest) (*models.Section, error)
	Update(ctx context.Context, id int64, req models.UpdateSectionRequest) (*models.Section, error)
	Move(ctx context.Context, id int64, req models.MoveSectionRequest) (*models.Section, error)
	BulkReorder(ctx context.Context, courseID int64, items []models.ReorderItem) ([]models.Section, error)
	Delete(ctx context.Context, id int64) error
	Duplicate(ctx context.Context, id int64, deep bool) (*models.Section, error)
}

type sectionService struct {
	sections repository.SectionRepo
	courses  repository.CourseRepo
}

func NewSectionService(sections repository.SectionRepo, courses repository.CourseRepo) SectionService {
	return &sectionService{sections: sections, courses: courses}
}

func (s *sectionService) buildTree(ctx context.Context, courseID int64, records []models.Section) *coursetree.Tree {
	tree := coursetree.Build(records)
	if orphans := tree.Orphans(); len(orphans) > 0 {
		logger.WithCtx(ctx).Warn("Дерево курса содержит разделы с битой ссылкой на родителя",
			zap.Int64("course_id", courseID), zap.Int64s("orphan_ids", orphans))
	}
	return tree
}

func (s *sectionService) Tree(ctx context.Context, courseID int64) (*coursetree.Tree, error) {
	exists, err := s.courses.Exists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: курс id=%d", coursetree.ErrNotFound, courseID)
	}

	records, err := s.sections.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return s.buildTree(ctx, courseID, records), nil
}

// Flattened — линейный порядок чтения курса.
func (s *sectionService) Flattened(ctx context.Context, courseID int64) ([]models.Section, error) {
	tree, err := s.Tree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	flat := tree.Flatten()
	out := make([]models.Section, 0, len(flat))
	for _, n := range flat {
		out = append(out, n.Section)
	}
	return out, nil
}

func (s *sectionService) treeAround(ctx context.Context, sectionID int64) (*coursetree.Tree, error) {
	sec, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, sectionID)
	}
	records, err := s.sections.ListByCourse(ctx, sec.CourseID)
	if err != nil {
		return nil, err
	}
	return s.buildTree(ctx, sec.CourseID, records), nil
}

func (s *sectionService) Breadcrumb(ctx context.Context, sectionID int64) ([]coursetree.Crumb, error) {
	tree, err := s.treeAround(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	return tree.Breadcrumb(sectionID)
}

func (s *sectionService) Neighbors(ctx context.Context, sectionID int64) (*models.Section, *models.Section, error) {
	tree, err := s.treeAround(ctx, sectionID)
	if err != nil {
		return nil, nil, err
	}
	prevNode, err := tree.Previous(sectionID)
	if err != nil {
		return nil, nil, err
	}
	nextNode, err := tree.Next(sectionID)
	if err != nil {
		return nil, nil, err
	}
	var prev, next *models.Section
	if prevNode != nil {
		sec := prevNode.Section
		prev = &sec
	}
	if nextNode != nil {
		sec := nextNode.Section
		next = &sec
	}
	return prev, next, nil
}

func (s *sectionService) Create(ctx context.Context, req models.CreateSectionRequest) (*models.Section, error) {
	log := logger.WithCtx(ctx)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: пустой заголовок", coursetree.ErrValidation)
	}
	if req.Position != nil && *req.Position < 0 {
		return nil, fmt.Errorf("%w: отрицательная позиция %d", coursetree.ErrValidation, *req.Position)
	}

	exists, err := s.courses.Exists(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: курс id=%d", coursetree.ErrNotFound, req.CourseID)
	}

	var created *models.Section
	err = s.sections.InCourseTx(ctx, req.CourseID, func(ctx context.Context, tx repository.SectionTx) error {
		records, err := tx.ListByCourse(ctx, req.CourseID)
		if err != nil {
			return err
		}
		if req.ParentID != nil {
			if err := s.resolveParent(ctx, records, req.CourseID, *req.ParentID); err != nil {
				return err
			}
		}
		pos := coursetree.NextPosition(records, req.ParentID)
		if req.Position != nil {
			pos = *req.Position
			// освобождаем позицию: уникальность в группе соседей
			if err := tx.ShiftPositions(ctx, req.CourseID, req.ParentID, pos); err != nil {
				return err
			}
		}
		created, err = tx.Insert(ctx, &models.Section{
			CourseID: req.CourseID,
			ParentID: req.ParentID,
			Title:    title,
			Content:  req.Content,
			Position: pos,
		})
		return err
	})
	if err != nil {
		log.Warn("Создание раздела отклонено", zap.Int64("course_id", req.CourseID), zap.Error(err))
		return nil, err
	}

	log.Info("Раздел создан", zap.Int64("id", created.ID), zap.Int64("course_id", created.CourseID))
	return created, nil
}

// resolveParent различает «родителя нет вообще» и «родитель из другого курса».
func (s *sectionService) resolveParent(ctx context.Context, records []models.Section, courseID, parentID int64) error {
	for _, rec := range records {
		if rec.ID == parentID {
			return nil
		}
	}
	foreign, err := s.sections.GetByID(ctx, parentID)
	if err != nil {
		return err
	}
	if foreign != nil && foreign.CourseID != courseID {
		return fmt.Errorf("%w: родитель id=%d из курса %d", coursetree.ErrCrossCourse, parentID, foreign.CourseID)
	}
	return fmt.Errorf("%w: родитель id=%d", coursetree.ErrNotFound, parentID)
}

func (s *sectionService) Update(ctx context.Context, id int64, req models.UpdateSectionRequest) (*models.Section, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, fmt.Errorf("%w: пустой заголовок", coursetree.ErrValidation)
	}

	sec, err := s.sections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, id)
	}

	var updated *models.Section
	err = s.sections.InCourseTx(ctx, sec.CourseID, func(ctx context.Context, tx repository.SectionTx) error {
		updated, err = tx.UpdateContent(ctx, id, req.Title, req.Content)
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Move переносит раздел под нового родителя (nil = в корень) и/или меняет
// позицию (nil = в конец группы). Валидация — по состоянию, перечитанному
// внутри курсовой транзакции.
func (s *sectionService) Move(ctx context.Context, id int64, req models.MoveSectionRequest) (*models.Section, error) {
	log := logger.WithCtx(ctx)

	if req.Position != nil && *req.Position < 0 {
		return nil, fmt.Errorf("%w: отрицательная позиция %d", coursetree.ErrValidation, *req.Position)
	}

	sec, err := s.sections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, id)
	}

	var moved models.Section
	err = s.sections.InCourseTx(ctx, sec.CourseID, func(ctx context.Context, tx repository.SectionTx) error {
		records, err := tx.ListByCourse(ctx, sec.CourseID)
		if err != nil {
			return err
		}
		// родитель из чужого курса не попадёт в выборку: добавим его запись,
		// чтобы валидация дала ErrCrossCourse, а не ErrNotFound
		if req.ParentID != nil && !containsID(records, *req.ParentID) {
			if foreign, err := s.sections.GetByID(ctx, *req.ParentID); err != nil {
				return err
			} else if foreign != nil {
				records = append(records, *foreign)
			}
		}

		if err := coursetree.ValidateMove(records, id, req.ParentID); err != nil {
			return err
		}

		pos := 0
		if req.Position != nil {
			pos = *req.Position
			if err := tx.ShiftPositions(ctx, sec.CourseID, req.ParentID, pos); err != nil {
				return err
			}
		} else {
			siblings := make([]models.Section, 0, len(records))
			for _, rec := range records {
				if rec.ID != id {
					siblings = append(siblings, rec)
				}
			}
			pos = coursetree.NextPosition(siblings, req.ParentID)
		}

		if err := tx.SetParentAndPosition(ctx, id, req.ParentID, pos); err != nil {
			return err
		}
		moved = *sec
		moved.ParentID = req.ParentID
		moved.Position = pos
		return nil
	})
	if err != nil {
		log.Warn("Перемещение раздела отклонено", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	log.Info("Раздел перемещён",
		zap.Int64("id", id), zap.Any("parent_id", req.ParentID), zap.Int("position", moved.Position))
	return &moved, nil
}

// BulkReorder применяет черновик клиента как один пакет: либо весь, либо ничего.
func (s *sectionService) BulkReorder(ctx context.Context, courseID int64, items []models.ReorderItem) ([]models.Section, error) {
	log := logger.WithCtx(ctx)

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: пустой пакет", coursetree.ErrValidation)
	}
	exists, err := s.courses.Exists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: курс id=%d", coursetree.ErrNotFound, courseID)
	}

	var out []models.Section
	err = s.sections.InCourseTx(ctx, courseID, func(ctx context.Context, tx repository.SectionTx) error {
		records, err := tx.ListByCourse(ctx, courseID)
		if err != nil {
			return err
		}
		if err := coursetree.ValidateBatch(records, items); err != nil {
			return err
		}
		if err := tx.ApplyReorder(ctx, items); err != nil {
			return err
		}
		out, err = tx.ListByCourse(ctx, courseID)
		return err
	})
	if err != nil {
		log.Warn("Пакетный реордеринг отклонён",
			zap.Int64("course_id", courseID), zap.Int("items", len(items)), zap.Error(err))
		return nil, err
	}

	log.Info("Пакетный реордеринг применён",
		zap.Int64("course_id", courseID), zap.Int("items", len(items)))
	return out, nil
}

// Delete удаляет раздел вместе со всем поддеревом; тесты, привязанные к
// удаляемым разделам, отвязываются, а не удаляются.
func (s *sectionService) Delete(ctx context.Context, id int64) error {
	log := logger.WithCtx(ctx)

	sec, err := s.sections.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sec == nil {
		return fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, id)
	}

	return s.sections.InCourseTx(ctx, sec.CourseID, func(ctx context.Context, tx repository.SectionTx) error {
		records, err := tx.ListByCourse(ctx, sec.CourseID)
		if err != nil {
			return err
		}
		tree := s.buildTree(ctx, sec.CourseID, records)
		ids, ok := tree.Subtree(id)
		if !ok {
			return fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, id)
		}

		detached, err := tx.DetachQuizzes(ctx, ids)
		if err != nil {
			return err
		}
		deleted, err := tx.DeleteMany(ctx, ids)
		if err != nil {
			return err
		}
		log.Info("Поддерево разделов удалено",
			zap.Int64("root_id", id), zap.Int64("deleted", deleted), zap.Int64("quizzes_detached", detached))
		return nil
	})
}

// Duplicate создаёт копию раздела сразу после оригинала. По умолчанию копия
// неглубокая; deep=true воспроизводит всё поддерево с сохранением позиций.
func (s *sectionService) Duplicate(ctx context.Context, id int64, deep bool) (*models.Section, error) {
	log := logger.WithCtx(ctx)

	sec, err := s.sections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, id)
	}

	var copyRoot *models.Section
	err = s.sections.InCourseTx(ctx, sec.CourseID, func(ctx context.Context, tx repository.SectionTx) error {
		records, err := tx.ListByCourse(ctx, sec.CourseID)
		if err != nil {
			return err
		}
		tree := s.buildTree(ctx, sec.CourseID, records)
		orig, ok := tree.Node(id)
		if !ok {
			return fmt.Errorf("%w: id=%d", coursetree.ErrNotFound, id)
		}

		// освобождаем слот сразу после оригинала
		if err := tx.ShiftPositions(ctx, sec.CourseID, orig.Section.ParentID, orig.Section.Position+1); err != nil {
			return err
		}
		copyRoot, err = tx.Insert(ctx, &models.Section{
			CourseID: sec.CourseID,
			ParentID: orig.Section.ParentID,
			Title:    orig.Section.Title + " (копия)",
			Content:  orig.Section.Content,
			Position: orig.Section.Position + 1,
		})
		if err != nil {
			return err
		}
		if !deep {
			return nil
		}
		return copyChildren(ctx, tx, orig, copyRoot.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Раздел продублирован",
		zap.Int64("source_id", id), zap.Int64("copy_id", copyRoot.ID), zap.Bool("deep", deep))
	return copyRoot, nil
}

// copyChildren воспроизводит поддерево сверху вниз: каждый ребёнок вставляется
// под свежесозданную копию своего родителя с исходной позицией.
func copyChildren(ctx context.Context, tx repository.SectionTx, orig *coursetree.Node, newParentID int64) error {
	for _, child := range orig.Children {
		pid := newParentID
		inserted, err := tx.Insert(ctx, &models.Section{
			CourseID: child.Section.CourseID,
			ParentID: &pid,
			Title:    child.Section.Title,
			Content:  child.Section.Content,
			Position: child.Section.Position,
		})
		if err != nil {
			return err
		}
		if err := copyChildren(ctx, tx, child, inserted.ID); err != nil {
			return err
		}
	}
	return nil
}

func containsID(records []models.Section, id int64) bool {
	for _, rec := range records {
		if rec.ID == id {
			return true
		}
	}
	return false
}
