package routes

import (
	"eduflow/internal/config"
	"eduflow/internal/handlers"
	"eduflow/internal/middleware"

	"github.com/gorilla/mux"
)

func InitRoutes(
	router *mux.Router,
	cfg *config.Config,
	courseHandler *handlers.CourseHandler,
	sectionHandler *handlers.SectionHandler,
	progressHandler *handlers.ProgressHandler,
) {
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging)
	router.Use(middleware.Recoverer)

	api := router.PathPrefix("/api").Subrouter()

	// --- Публичные маршруты ---
	api.HandleFunc("/courses", courseHandler.List).Methods("GET")
	api.HandleFunc("/courses/{id:[0-9]+}", courseHandler.Get).Methods("GET")
	api.HandleFunc("/courses/{id:[0-9]+}/tree", sectionHandler.Tree).Methods("GET")
	api.HandleFunc("/courses/{id:[0-9]+}/flat", sectionHandler.Flat).Methods("GET")
	api.HandleFunc("/sections/{id:[0-9]+}/breadcrumb", sectionHandler.Breadcrumb).Methods("GET")
	api.HandleFunc("/sections/{id:[0-9]+}/neighbors", sectionHandler.Neighbors).Methods("GET")

	// --- Защищённые JWT ---
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.JWTAuth(cfg))

	protected.HandleFunc("/courses/{id:[0-9]+}/progress", progressHandler.CourseProgress).Methods("GET")
	protected.HandleFunc("/courses/{id:[0-9]+}/progress", progressHandler.Reset).Methods("DELETE")
	protected.HandleFunc("/courses/{id:[0-9]+}/progress/sections", progressHandler.SectionProgress).Methods("GET")
	protected.HandleFunc("/sections/{id:[0-9]+}/visited", progressHandler.ToggleVisited).Methods("PATCH")

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.OnlyRole("admin"))
	admin.HandleFunc("/courses", courseHandler.Create).Methods("POST")
	admin.HandleFunc("/courses/{id:[0-9]+}", courseHandler.Update).Methods("PATCH")
	admin.HandleFunc("/courses/{id:[0-9]+}", courseHandler.Delete).Methods("DELETE")
	admin.HandleFunc("/courses/{id:[0-9]+}/reorder", sectionHandler.BulkReorder).Methods("POST")
	admin.HandleFunc("/sections", sectionHandler.Create).Methods("POST")
	admin.HandleFunc("/sections/{id:[0-9]+}", sectionHandler.Update).Methods("PATCH")
	admin.HandleFunc("/sections/{id:[0-9]+}", sectionHandler.Delete).Methods("DELETE")
	admin.HandleFunc("/sections/{id:[0-9]+}/move", sectionHandler.Move).Methods("PATCH")
	admin.HandleFunc("/sections/{id:[0-9]+}/duplicate", sectionHandler.Duplicate).Methods("POST")
}
