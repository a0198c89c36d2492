package handlers

import (
	"encoding/json"
	"net/http"

	"eduflow/internal/logger"
	"eduflow/internal/models"
	"eduflow/internal/reqctx"
	"eduflow/internal/services"
	helpers "eduflow/internal/utils/helpers"

	"go.uber.org/zap"
)

type CourseHandler struct{ svc services.CourseService }

func NewCourseHandler(s services.CourseService) *CourseHandler {
	return &CourseHandler{svc: s}
}

// List
// @Summary      Список курсов
// @Description  Администратор видит и неопубликованные курсы
// @Tags         courses
// @Produce      json
// @Success      200 {object} map[string][]models.Course
// @Router       /api/courses [get]
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	role, _ := reqctx.GetRole(r.Context())
	courses, err := h.svc.List(r.Context(), role != "admin")
	if err != nil {
		helpers.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"courses": courses})
}

// Get
// @Summary      Курс по ID
// @Tags         courses
// @Produce      json
// @Param        id  path  int  true  "ID курса"
// @Success      200 {object} map[string]models.Course
// @Failure      404 {object} map[string]string
// @Router       /api/courses/{id} [get]
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}
	c, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"course": c})
}

// Create
// @Summary      Создать курс
// @Description  Доступно только администратору
// @Tags         courses
// @Accept       json
// @Produce      json
// @Param        body  body  models.CreateCourseRequest  true  "Данные курса"
// @Success      201 {object} map[string]models.Course
// @Failure      400 {object} map[string]string
// @Router       /api/admin/courses [post]
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	var req models.CreateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("courses: невалидный JSON при создании", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "bad json")
		return
	}

	created, err := h.svc.Create(r.Context(), req)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusCreated, map[string]any{"course": created})
}

// Update
// @Summary      Обновить курс
// @Description  Доступно только администратору
// @Tags         courses
// @Accept       json
// @Produce      json
// @Param        id    path  int                         true  "ID курса"
// @Param        body  body  models.UpdateCourseRequest  true  "Обновлённые поля"
// @Success      200 {object} map[string]models.Course
// @Failure      404 {object} map[string]string
// @Router       /api/admin/courses/{id} [patch]
func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	var req models.UpdateCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "bad json")
		return
	}

	updated, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"course": updated})
}

// Delete
// @Summary      Удалить курс
// @Description  Доступно только администратору. Разделы и прогресс удаляются каскадом
// @Tags         courses
// @Param        id  path  int  true  "ID курса"
// @Success      204 {string} string "No Content"
// @Failure      404 {object} map[string]string
// @Router       /api/admin/courses/{id} [delete]
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
