package repository

import (
	"context"
	"errors"

	"eduflow/internal/logger"
	"eduflow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type CourseRepo interface {
	Create(ctx context.Context, c *models.Course) (*models.Course, error)
	GetByID(ctx context.Context, id int64) (*models.Course, error)
	List(ctx context.Context, onlyPublished bool) ([]*models.Course, error)
	Update(ctx context.Context, c *models.Course) error
	Delete(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

type courseRepo struct{ db *pgxpool.Pool }

func NewCourseRepo(db *pgxpool.Pool) CourseRepo { return &courseRepo{db: db} }

func (r *courseRepo) Create(ctx context.Context, c *models.Course) (*models.Course, error) {
	logger.Log.Debug("Создание курса (repo)", zap.String("slug", c.Slug), zap.String("title", c.Title))
	const q = `
		INSERT INTO courses (slug, title, description, is_published)
		VALUES ($1,$2,$3,$4)
		RETURNING id, slug, title, description, is_published, created_at, updated_at`

	var out models.Course
	err := r.db.QueryRow(ctx, q, c.Slug, c.Title, c.Description, c.IsPublished).Scan(
		&out.ID, &out.Slug, &out.Title, &out.Description, &out.IsPublished, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *courseRepo) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	const q = `
		SELECT id, slug, title, description, is_published, created_at, updated_at
		FROM courses WHERE id = $1`

	var out models.Course
	err := r.db.QueryRow(ctx, q, id).Scan(
		&out.ID, &out.Slug, &out.Title, &out.Description, &out.IsPublished, &out.CreatedAt, &out.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *courseRepo) List(ctx context.Context, onlyPublished bool) ([]*models.Course, error) {
	q := `
		SELECT id, slug, title, description, is_published, created_at, updated_at
		FROM courses`
	if onlyPublished {
		q += ` WHERE is_published = true`
	}
	q += ` ORDER BY id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.IsPublished, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *courseRepo) Update(ctx context.Context, c *models.Course) error {
	_, err := r.db.Exec(ctx,
		`UPDATE courses SET title=$1, description=$2, is_published=$3, updated_at=now() WHERE id=$4`,
		c.Title, c.Description, c.IsPublished, c.ID,
	)
	return err
}

// Delete удаляет курс вместе с разделами и прогрессом (ON DELETE CASCADE в схеме).
func (r *courseRepo) Delete(ctx context.Context, id int64) error {
	logger.Log.Debug("Удаление курса (repo)", zap.Int64("course_id", id))
	_, err := r.db.Exec(ctx, `DELETE FROM courses WHERE id=$1`, id)
	return err
}

func (r *courseRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *courseRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE slug=$1)`, slug).Scan(&exists)
	return exists, err
}
