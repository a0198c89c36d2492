package repository

import (
	"context"
	"errors"
	"fmt"

	"eduflow/internal/logger"
	"eduflow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SectionRepo — хранилище разделов. Все структурные записи идут через
// InCourseTx: транзакция с advisory-локом по курсу, внутри которой сервис
// перечитывает актуальное состояние, валидирует и пишет. Валидация по
// устаревшему дереву исключена по построению.
type SectionRepo interface {
	ListByCourse(ctx context.Context, courseID int64) ([]models.Section, error)
	GetByID(ctx context.Context, id int64) (*models.Section, error)
	InCourseTx(ctx context.Context, courseID int64, fn func(ctx context.Context, tx SectionTx) error) error
}

// SectionTx — операции, доступные внутри транзакции структурной записи.
type SectionTx interface {
	ListByCourse(ctx context.Context, courseID int64) ([]models.Section, error)
	Insert(ctx context.Context, s *models.Section) (*models.Section, error)
	UpdateContent(ctx context.Context, id int64, title, content *string) (*models.Section, error)
	SetParentAndPosition(ctx context.Context, id int64, parentID *int64, position int) error
	ShiftPositions(ctx context.Context, courseID int64, parentID *int64, fromPosition int) error
	ApplyReorder(ctx context.Context, items []models.ReorderItem) error
	DeleteMany(ctx context.Context, ids []int64) (int64, error)
	DetachQuizzes(ctx context.Context, sectionIDs []int64) (int64, error)
}

type sectionRepo struct{ db *pgxpool.Pool }

func NewSectionRepo(db *pgxpool.Pool) SectionRepo { return &sectionRepo{db: db} }

const sectionColumns = `id, course_id, parent_id, title, content, position, created_at, updated_at`

func scanSection(row pgx.Row) (*models.Section, error) {
	var s models.Section
	err := row.Scan(&s.ID, &s.CourseID, &s.ParentID, &s.Title, &s.Content, &s.Position, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func listByCourse(ctx context.Context, q querier, courseID int64) ([]models.Section, error) {
	rows, err := q.Query(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE course_id = $1 ORDER BY id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Section
	for rows.Next() {
		var s models.Section
		if err := rows.Scan(&s.ID, &s.CourseID, &s.ParentID, &s.Title, &s.Content, &s.Position, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// querier — общее подмножество pgxpool.Pool и pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *sectionRepo) ListByCourse(ctx context.Context, courseID int64) ([]models.Section, error) {
	return listByCourse(ctx, r.db, courseID)
}

func (r *sectionRepo) GetByID(ctx context.Context, id int64) (*models.Section, error) {
	s, err := scanSection(r.db.QueryRow(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// InCourseTx выполняет fn в транзакции, предварительно взяв advisory-лок по
// курсу: конкурентные структурные записи одного курса сериализуются, разные
// курсы друг другу не мешают. Лок снимается вместе с транзакцией.
func (r *sectionRepo) InCourseTx(ctx context.Context, courseID int64, fn func(ctx context.Context, tx SectionTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('sections:' || $1::text))`, courseID); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	if err := fn(ctx, &sectionTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		logger.Log.Error("Коммит структурной записи не удался (repo)",
			zap.Int64("course_id", courseID), zap.Error(err))
		return err
	}
	return nil
}

type sectionTx struct{ tx pgx.Tx }

func (t *sectionTx) ListByCourse(ctx context.Context, courseID int64) ([]models.Section, error) {
	return listByCourse(ctx, t.tx, courseID)
}

func (t *sectionTx) Insert(ctx context.Context, s *models.Section) (*models.Section, error) {
	logger.Log.Debug("Вставка раздела (repo)",
		zap.Int64("course_id", s.CourseID), zap.String("title", s.Title), zap.Int("position", s.Position))
	return scanSection(t.tx.QueryRow(ctx, `
		INSERT INTO sections (course_id, parent_id, title, content, position)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+sectionColumns,
		s.CourseID, s.ParentID, s.Title, s.Content, s.Position))
}

func (t *sectionTx) UpdateContent(ctx context.Context, id int64, title, content *string) (*models.Section, error) {
	s, err := scanSection(t.tx.QueryRow(ctx, `
		UPDATE sections
		SET title = COALESCE($2, title),
		    content = COALESCE($3, content),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+sectionColumns, id, title, content))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (t *sectionTx) SetParentAndPosition(ctx context.Context, id int64, parentID *int64, position int) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE sections SET parent_id=$2, position=$3, updated_at=now() WHERE id=$1`,
		id, parentID, position)
	return err
}

// ShiftPositions сдвигает на +1 позиции всех соседей группы начиная с fromPosition —
// освобождает слот для вставки «сразу после».
func (t *sectionTx) ShiftPositions(ctx context.Context, courseID int64, parentID *int64, fromPosition int) error {
	var err error
	if parentID == nil {
		_, err = t.tx.Exec(ctx,
			`UPDATE sections SET position = position + 1, updated_at=now()
			 WHERE course_id=$1 AND parent_id IS NULL AND position >= $2`,
			courseID, fromPosition)
	} else {
		_, err = t.tx.Exec(ctx,
			`UPDATE sections SET position = position + 1, updated_at=now()
			 WHERE course_id=$1 AND parent_id = $2 AND position >= $3`,
			courseID, *parentID, fromPosition)
	}
	return err
}

// ApplyReorder применяет уже провалидированный пакет одним батчем.
func (t *sectionTx) ApplyReorder(ctx context.Context, items []models.ReorderItem) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`UPDATE sections SET parent_id=$2, position=$3, updated_at=now() WHERE id=$1`,
			it.ID, it.ParentID, it.Position)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()
	for range items {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (t *sectionTx) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM sections WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DetachQuizzes отвязывает тесты от удаляемых разделов, не удаляя сами тесты.
func (t *sectionTx) DetachQuizzes(ctx context.Context, sectionIDs []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE quizzes SET section_id = NULL, updated_at=now() WHERE section_id = ANY($1)`, sectionIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
