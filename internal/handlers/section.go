package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"eduflow/internal/coursetree"
	"eduflow/internal/logger"
	"eduflow/internal/models"
	"eduflow/internal/services"
	helpers "eduflow/internal/utils/helpers"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type SectionHandler struct{ svc services.SectionService }

func NewSectionHandler(s services.SectionService) *SectionHandler {
	return &SectionHandler{svc: s}
}

// statusFor переводит вид ошибки структурной операции в HTTP-код:
// UI обязан получить конкретную причину, а не общий «не получилось».
func statusFor(err error) int {
	switch {
	case errors.Is(err, coursetree.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, coursetree.ErrInvalidBatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, coursetree.ErrCycle), errors.Is(err, coursetree.ErrCrossCourse):
		return http.StatusConflict
	case errors.Is(err, coursetree.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

// Tree
// @Summary      Дерево разделов курса
// @Description  Возвращает вложенное дерево разделов, отсортированное по позициям
// @Tags         sections
// @Produce      json
// @Param        id  path  int  true  "ID курса"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} map[string]string
// @Router       /api/courses/{id}/tree [get]
func (h *SectionHandler) Tree(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	courseID, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	tree, err := h.svc.Tree(r.Context(), courseID)
	if err != nil {
		log.Warn("sections: ошибка получения дерева", zap.Int64("course_id", courseID), zap.Error(err))
		helpers.Error(w, statusFor(err), err.Error())
		return
	}

	log.Info("sections: дерево получено", zap.Int64("course_id", courseID), zap.Int("sections", tree.Size()))
	helpers.JSON(w, http.StatusOK, map[string]any{"roots": tree.Roots})
}

// Flat
// @Summary      Линейный порядок чтения курса
// @Description  Разделы курса в порядке обхода дерева сверху вниз
// @Tags         sections
// @Produce      json
// @Param        id  path  int  true  "ID курса"
// @Success      200 {object} map[string][]models.Section
// @Failure      404 {object} map[string]string
// @Router       /api/courses/{id}/flat [get]
func (h *SectionHandler) Flat(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	flat, err := h.svc.Flattened(r.Context(), courseID)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"sections": flat})
}

// Breadcrumb
// @Summary      Хлебные крошки раздела
// @Description  Путь от корня курса до раздела
// @Tags         sections
// @Produce      json
// @Param        id  path  int  true  "ID раздела"
// @Success      200 {object} map[string][]coursetree.Crumb
// @Failure      404 {object} map[string]string
// @Router       /api/sections/{id}/breadcrumb [get]
func (h *SectionHandler) Breadcrumb(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	path, err := h.svc.Breadcrumb(r.Context(), sectionID)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"path": path})
}

// Neighbors
// @Summary      Соседние разделы в порядке чтения
// @Description  Предыдущий и следующий разделы; null на краях курса
// @Tags         sections
// @Produce      json
// @Param        id  path  int  true  "ID раздела"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} map[string]string
// @Router       /api/sections/{id}/neighbors [get]
func (h *SectionHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	prev, next, err := h.svc.Neighbors(r.Context(), sectionID)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"previous": prev, "next": next})
}

// Create
// @Summary      Создать раздел
// @Description  Доступно только администратору. Позиция по умолчанию — конец группы
// @Tags         sections
// @Accept       json
// @Produce      json
// @Param        body  body  models.CreateSectionRequest  true  "Данные раздела"
// @Success      201 {object} map[string]models.Section
// @Failure      400 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /api/admin/sections [post]
func (h *SectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	var req models.CreateSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("sections: невалидный JSON при создании", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "bad json")
		return
	}

	created, err := h.svc.Create(r.Context(), req)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusCreated, map[string]any{"section": created})
}

// Update
// @Summary      Обновить заголовок/содержимое раздела
// @Description  Доступно только администратору; структуру дерева не меняет
// @Tags         sections
// @Accept       json
// @Produce      json
// @Param        id    path  int                          true  "ID раздела"
// @Param        body  body  models.UpdateSectionRequest  true  "Обновлённые поля"
// @Success      200 {object} map[string]models.Section
// @Failure      400 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /api/admin/sections/{id} [patch]
func (h *SectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	var req models.UpdateSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.Error(w, http.StatusBadRequest, "bad json")
		return
	}

	updated, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"section": updated})
}

// Move
// @Summary      Переместить раздел
// @Description  Смена родителя (null = в корень) и/или позиции (null = в конец). Перемещение в собственное поддерево отклоняется
// @Tags         sections
// @Accept       json
// @Produce      json
// @Param        id    path  int                        true  "ID раздела"
// @Param        body  body  models.MoveSectionRequest  true  "Новый родитель и позиция"
// @Success      200 {object} map[string]models.Section
// @Failure      404 {object} map[string]string
// @Failure      409 {object} map[string]string
// @Router       /api/admin/sections/{id}/move [patch]
func (h *SectionHandler) Move(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	id, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	var req models.MoveSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("sections: невалидный JSON при перемещении", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "bad json")
		return
	}

	moved, err := h.svc.Move(r.Context(), id, req)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"section": moved})
}

// BulkReorder
// @Summary      Пакетный реордеринг разделов курса
// @Description  Применяет черновик структуры целиком: любой битый элемент отклоняет весь пакет
// @Tags         sections
// @Accept       json
// @Produce      json
// @Param        id    path  int                   true  "ID курса"
// @Param        body  body  []models.ReorderItem  true  "Итоговые позиции и родители"
// @Success      200 {object} map[string][]models.Section
// @Failure      404 {object} map[string]string
// @Failure      422 {object} map[string]string
// @Router       /api/admin/courses/{id}/reorder [post]
func (h *SectionHandler) BulkReorder(w http.ResponseWriter, r *http.Request) {
	log := logger.WithCtx(r.Context())

	courseID, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}

	var items []models.ReorderItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		log.Warn("sections: невалидный JSON пакета", zap.Error(err))
		helpers.Error(w, http.StatusBadRequest, "bad json")
		return
	}

	out, err := h.svc.BulkReorder(r.Context(), courseID, items)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusOK, map[string]any{"sections": out})
}

// Delete
// @Summary      Удалить раздел с поддеревом
// @Description  Доступно только администратору. Привязанные тесты отвязываются
// @Tags         sections
// @Param        id  path  int  true  "ID раздела"
// @Success      204 {string} string "No Content"
// @Failure      404 {object} map[string]string
// @Router       /api/admin/sections/{id} [delete]
func (h *SectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Duplicate
// @Summary      Продублировать раздел
// @Description  Копия встаёт сразу после оригинала. ?deep=true копирует всё поддерево
// @Tags         sections
// @Produce      json
// @Param        id    path   int     true   "ID раздела"
// @Param        deep  query  bool    false  "Глубокая копия"
// @Success      201 {object} map[string]models.Section
// @Failure      404 {object} map[string]string
// @Router       /api/admin/sections/{id}/duplicate [post]
func (h *SectionHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		helpers.Error(w, http.StatusBadRequest, "bad id")
		return
	}
	deep := r.URL.Query().Get("deep") == "true"

	cp, err := h.svc.Duplicate(r.Context(), id, deep)
	if err != nil {
		helpers.Error(w, statusFor(err), err.Error())
		return
	}
	helpers.JSON(w, http.StatusCreated, map[string]any{"section": cp})
}
