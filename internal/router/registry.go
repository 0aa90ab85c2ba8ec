package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Registry struct {
	Engine      *gin.Engine
	API         *gin.RouterGroup
	Logger      *logrus.Logger
	middlewares []gin.HandlerFunc
	modules     []Module
}

func NewRegistry(engine *gin.Engine, logger *logrus.Logger) *Registry {
	return &Registry{Engine: engine, API: engine.Group("/api"), Logger: logger}
}

// Use adds middleware applied to every module route.
func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.middlewares = append(r.middlewares, mw...)
}

func (r *Registry) Add(mod Module) {
	r.modules = append(r.modules, mod)
}

func (r *Registry) Modules() []string {
	names := make([]string, 0, len(r.modules))
	for _, m := range r.modules {
		names = append(names, m.Name())
	}
	return names
}

func (r *Registry) RegisterAll() {
	if len(r.middlewares) > 0 {
		r.API.Use(r.middlewares...)
	}
	for _, m := range r.modules {
		m.Register(r.API)
	}
	if r.Logger != nil {
		r.Logger.WithField("modules", r.Modules()).Info("routes registered")
	}
}
