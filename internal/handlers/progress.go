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

type ProgressHandler struct{ svc services.ProgressService }

func NewProgressHandler(s services.ProgressService) *ProgressHandler {
	return &ProgressHandler{svc: s}
}

// CourseProgress
// @Summary      Прогресс пользователя по курсу
// @Description  Процент выводится из отметок посещения на момент запроса
// @Tags         progress
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id  path  int  true  "ID курса"
// @Success      200 {object} map[string]models.CourseProgress
// @Failure      404 {object} map[string]string
// @Router       /api/courses/{id}/progress [get]
func (h *ProgressHandler) CourseProgress(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	userID, ok := reqctx.GetUserID(r.Context())
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "нет пользователя в контексте")
		return
	}
	courseID, okID := pathID(r, "id")
	if !okID {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	cp, err := h.svc.CourseProgress(r.Context(), userID, courseID)
	if err != nil {
		log.Warn("progress: ошибка чтения прогресса", zap.Int64("course_id", courseID), zap.Error(err))
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"progress": cp})
}

// SectionProgress
// @Summary      Отметки посещения всех разделов курса
// @Description  Разделы в линейном порядке чтения с флагами посещения — для чекмарок без N+1
// @Tags         progress
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id  path  int  true  "ID курса"
// @Success      200 {object} map[string][]models.SectionProgressItem
// @Failure      404 {object} map[string]string
// @Router       /api/courses/{id}/progress/sections [get]
func (h *ProgressHandler) SectionProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := reqctx.GetUserID(r.Context())
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "нет пользователя в контексте")
		return
	}
	courseID, okID := pathID(r, "id")
	if !okID {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	items, err := h.svc.SectionProgress(r.Context(), userID, courseID)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"sections": items})
}

// ToggleVisited
// @Summary      Отметить раздел посещённым/непосещённым
// @Description  Идемпотентно: повторный вызов с тем же значением ничего не меняет
// @Tags         progress
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        id    path  int                          true  "ID раздела"
// @Param        body  body  models.ToggleVisitedRequest  true  "Флаг посещения"
// @Success      200 {object} map[string]models.SectionProgress
// @Failure      404 {object} map[string]string
// @Router       /api/sections/{id}/visited [patch]
func (h *ProgressHandler) ToggleVisited(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	userID, ok := reqctx.GetUserID(r.Context())
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "нет пользователя в контексте")
		return
	}
	sectionID, okID := pathID(r, "id")
	if !okID {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	var req models.ToggleVisitedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("progress: невалидный JSON при переключении отметки", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "bad json")
		return
	}

	sp, err := h.svc.ToggleVisited(r.Context(), userID, sectionID, req.Visited)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"section_progress": sp})
}

// Reset
// @Summary      Сбросить прогресс по курсу
// @Description  Стирает все отметки посещения и шапку прогресса
// @Tags         progress
// @Security     ApiKeyAuth
// @Param        id  path  int  true  "ID курса"
// @Success      204 {string} string "No Content"
// @Failure      404 {object} map[string]string
// @Router       /api/courses/{id}/progress [delete]
func (h *ProgressHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID, ok := reqctx.GetUserID(r.Context())
	if !ok {
		helpers.Error(w, http.StatusUnauthorized, "нет пользователя в контексте")
		return
	}
	courseID, okID := pathID(r, "id")
	if !okID {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	if err := h.svc.Reset(r.Context(), userID, courseID); err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
