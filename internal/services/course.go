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

type CourseService interface {
	Create(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error)
	GetByID(ctx context.Context, id int64) (*models.Course, error)
	List(ctx context.Context, onlyPublished bool) ([]*models.Course, error)
	Update(ctx context.Context, id int64, req models.UpdateCourseRequest) (*models.Course, error)
	Delete(ctx context.Context, id int64) error
}

type courseService struct{ repo repository.CourseRepo }

func NewCourseService(repo repository.CourseRepo) CourseService {
	return &courseService{repo: repo}
}

func (s *courseService) Create(ctx context.Context, req models.CreateCourseRequest) (*models.Course, error) {
	log := logger.WithCtx(ctx)

	slug := strings.TrimSpace(strings.ToLower(req.Slug))
	title := strings.TrimSpace(req.Title)
	if slug == "" || title == "" {
		return nil, fmt.Errorf("%w: slug и заголовок обязательны", coursetree.ErrValidation)
	}

	taken, err := s.repo.SlugExists(ctx, slug)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: slug %q уже занят", coursetree.ErrValidation, slug)
	}

	created, err := s.repo.Create(ctx, &models.Course{
		Slug:        slug,
		Title:       title,
		Description: req.Description,
		IsPublished: req.Publish,
	})
	if err != nil {
		log.Error("Ошибка создания курса (repo)", zap.Error(err))
		return nil, err
	}

	log.Info("Курс создан", zap.Int64("id", created.ID), zap.String("slug", created.Slug))
	return created, nil
}

func (s *courseService) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: курс id=%d", coursetree.ErrNotFound, id)
	}
	return c, nil
}

func (s *courseService) List(ctx context.Context, onlyPublished bool) ([]*models.Course, error) {
	return s.repo.List(ctx, onlyPublished)
}

func (s *courseService) Update(ctx context.Context, id int64, req models.UpdateCourseRequest) (*models.Course, error) {
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: пустой заголовок", coursetree.ErrValidation)
		}
		c.Title = title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Publish != nil {
		c.IsPublished = *req.Publish
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *courseService) Delete(ctx context.Context, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("Курс удалён", zap.Int64("id", id))
	return nil
}
