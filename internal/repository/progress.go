package repository

import (
	"context"
	"errors"
	"time"

	"eduflow/internal/logger"
	"eduflow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ProgressRepo — посещения разделов и шапка прогресса курса.
// Процент в таблицах не хранится: единственный источник истины —
// строки section_progress, от которых сервис всё выводит на чтении.
type ProgressRepo interface {
	EnsureCourseProgress(ctx context.Context, userID, courseID int64) (*models.CourseProgress, error)
	TouchCourseProgress(ctx context.Context, userID, courseID int64, lastSectionID *int64) error
	VisitedAt(ctx context.Context, userID, courseID int64) (map[int64]time.Time, error)
	ToggleVisited(ctx context.Context, userID, sectionID int64, visited bool) (*models.SectionProgress, error)
	Reset(ctx context.Context, userID, courseID int64) error
}

type progressRepo struct{ db *pgxpool.Pool }

func NewProgressRepo(db *pgxpool.Pool) ProgressRepo { return &progressRepo{db: db} }

// EnsureCourseProgress возвращает шапку прогресса, создавая её при первом
// обращении пользователя к курсу.
func (r *progressRepo) EnsureCourseProgress(ctx context.Context, userID, courseID int64) (*models.CourseProgress, error) {
	const q = `
		INSERT INTO course_progress (user_id, course_id)
		VALUES ($1,$2)
		ON CONFLICT (user_id, course_id) DO UPDATE SET last_accessed_at = now()
		RETURNING user_id, course_id, last_section_id, started_at, last_accessed_at`

	var cp models.CourseProgress
	err := r.db.QueryRow(ctx, q, userID, courseID).Scan(
		&cp.UserID, &cp.CourseID, &cp.LastSectionID, &cp.StartedAt, &cp.LastAccessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (r *progressRepo) TouchCourseProgress(ctx context.Context, userID, courseID int64, lastSectionID *int64) error {
	const q = `
		INSERT INTO course_progress (user_id, course_id, last_section_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id, course_id) DO UPDATE
		SET last_section_id = COALESCE(EXCLUDED.last_section_id, course_progress.last_section_id),
		    last_accessed_at = now()`
	_, err := r.db.Exec(ctx, q, userID, courseID, lastSectionID)
	return err
}

// VisitedAt — отметки посещения всех разделов курса одним запросом (без N+1).
func (r *progressRepo) VisitedAt(ctx context.Context, userID, courseID int64) (map[int64]time.Time, error) {
	const q = `
		SELECT sp.section_id, sp.visited_at
		FROM section_progress sp
		JOIN sections s ON s.id = sp.section_id
		WHERE sp.user_id = $1 AND s.course_id = $2 AND sp.visited = true`

	rows, err := r.db.Query(ctx, q, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visited := make(map[int64]time.Time)
	for rows.Next() {
		var id int64
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		visited[id] = at
	}
	return visited, rows.Err()
}

// ToggleVisited — идемпотентный upsert: повторная установка того же значения
// не меняет наблюдаемое состояние. Снятие отметки обнуляет флаг и таймстемп,
// но строку не удаляет.
func (r *progressRepo) ToggleVisited(ctx context.Context, userID, sectionID int64, visited bool) (*models.SectionProgress, error) {
	logger.Log.Debug("Переключение отметки посещения (repo)",
		zap.Int64("user_id", userID), zap.Int64("section_id", sectionID), zap.Bool("visited", visited))

	const q = `
		INSERT INTO section_progress (user_id, section_id, visited, visited_at)
		VALUES ($1,$2,$3, CASE WHEN $3 THEN now() ELSE NULL END)
		ON CONFLICT (user_id, section_id) DO UPDATE
		SET visited = EXCLUDED.visited,
		    visited_at = CASE
		        WHEN NOT EXCLUDED.visited THEN NULL
		        WHEN section_progress.visited THEN section_progress.visited_at
		        ELSE now()
		    END
		RETURNING user_id, section_id, visited, visited_at`

	var sp models.SectionProgress
	err := r.db.QueryRow(ctx, q, userID, sectionID, visited).Scan(
		&sp.UserID, &sp.SectionID, &sp.Visited, &sp.VisitedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// Reset стирает прогресс пользователя по курсу целиком: строки посещений и шапку.
func (r *progressRepo) Reset(ctx context.Context, userID, courseID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM section_progress sp
		USING sections s
		WHERE sp.section_id = s.id AND sp.user_id = $1 AND s.course_id = $2`,
		userID, courseID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM course_progress WHERE user_id = $1 AND course_id = $2`,
		userID, courseID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
