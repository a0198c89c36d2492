package app

import (
	"eduflow/internal/config"
	"eduflow/internal/db"
	"eduflow/internal/handlers"
	"eduflow/internal/repository"
	"eduflow/internal/routes"
	"eduflow/internal/services"

	"github.com/gorilla/mux"
)

func InitApp(cfg *config.Config) (*mux.Router, error) {
	conn, err := db.NewPostgresConnection(cfg)
	if err != nil {
		return nil, err
	}
	// Репозитории
	courseRepo := repository.NewCourseRepo(conn)
	sectionRepo := repository.NewSectionRepo(conn)
	progressRepo := repository.NewProgressRepo(conn)

	// Сервисы
	courseSvc := services.NewCourseService(courseRepo)
	sectionSvc := services.NewSectionService(sectionRepo, courseRepo)
	progressSvc := services.NewProgressService(progressRepo, sectionRepo, courseRepo)

	// Хендлеры
	courseH := handlers.NewCourseHandler(courseSvc)
	sectionH := handlers.NewSectionHandler(sectionSvc)
	progressH := handlers.NewProgressHandler(progressSvc)

	// Маршруты
	router := mux.NewRouter()
	routes.InitRoutes(router, cfg, courseH, sectionH, progressH)

	return router, nil
}
