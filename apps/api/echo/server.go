package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/tsakani/shule/core"
	"github.com/tsakani/shule/core/school"
	"github.com/tsakani/shule/core/user"
)

// Deps wires the application services into the HTTP layer.
type Deps struct {
	Conf      *core.Config
	Logger    core.Logger
	UserSvc   user.Service
	SchoolSvc school.Service
}

type Server interface {
	http.Handler
	Start() error
	Stop(ctx context.Context) error
}

type server struct {
	echo *echo.Echo
	addr string
}

var _ Server = (*server)(nil)

// NewServer builds the echo application with the full middleware pipeline
// wired per route. signalShutdown lets the error handler request a graceful
// stop when a shutdown-class error surfaces.
func NewServer(addr string, signalShutdown func(), deps *Deps) Server {
	app := echo.New()
	app.HideBanner = true
	app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, signalShutdown)

	app.Pre(middleware.RemoveTrailingSlash())
	if !deps.Conf.TestMode {
		app.Use(middleware.Logger())
	}
	if !(deps.Conf.Debug || deps.Conf.TestMode) {
		app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	srv := &server{echo: app, addr: addr}
	srv.registerRoutes(deps)
	return srv
}

func (s *server) registerRoutes(deps *Deps) {
	codec := NewTokenCodec(deps.Conf)
	usrAPI := &userAPI{service: deps.UserSvc, codec: codec}
	schAPI := &schoolAPI{service: deps.SchoolSvc}
	comAPI := &communicationAPI{service: deps.UserSvc}

	// public
	s.echo.POST("/login", usrAPI.login)
	s.echo.POST("/login/refresh", usrAPI.refresh)

	auth := authenticated(codec)
	secretaryOnly := roleRequired(user.RoleSecretary)

	s.echo.GET("/yourself", usrAPI.yourself, auth)

	// users
	ug := s.echo.Group("/users", auth)
	ug.GET("", usrAPI.query, scopedUserQuery())
	ug.POST("", usrAPI.create, secretaryOnly, validateBody(user.CreateSchema))
	ug.PATCH("", bulkNotAllowed)
	ug.DELETE("", bulkNotAllowed)
	ug.GET("/:id", usrAPI.retrieve, selfOrSecretary("id"), resolveUser(deps.UserSvc, "id"))
	ug.PATCH("/:id", usrAPI.update, selfOrSecretary("id"), sanitizeBody(user.UpdateSchema), resolveUser(deps.UserSvc, "id"))
	ug.DELETE("/:id", usrAPI.destroy, secretaryOnly, resolveUser(deps.UserSvc, "id"))

	// communications, nested under the recipient
	ug.GET("/:id/communications", comAPI.list, selfOrSecretary("id"), resolveUser(deps.UserSvc, "id"))
	ug.POST("/:id/communications", comAPI.create, validateBody(user.CommunicationSchema), resolveUser(deps.UserSvc, "id"))
	ug.GET("/:id/communications/:commId", comAPI.retrieve, selfOrSecretary("id"), resolveUser(deps.UserSvc, "id"), resolveCommunication("commId"))
	ug.DELETE("/:id/communications/:commId", comAPI.destroy, selfOrSecretary("id"), resolveUser(deps.UserSvc, "id"), resolveCommunication("commId"))

	s.echo.GET("/communications", comAPI.queryAll, auth, secretarySentOnly())

	// classes
	cg := s.echo.Group("/classes", auth)
	cg.GET("", schAPI.query, scopedClassQuery())
	cg.POST("", schAPI.create, secretaryOnly, validateBody(school.CreateSchema))
	cg.PATCH("", bulkNotAllowed)
	cg.DELETE("", bulkNotAllowed)
	cg.GET("/:id", schAPI.retrieve, resolveClass(deps.SchoolSvc, "id"), classAccess())
	cg.PATCH("/:id", schAPI.update, secretaryOnly, sanitizeBody(school.UpdateSchema), resolveClass(deps.SchoolSvc, "id"))
	cg.DELETE("/:id", schAPI.destroy, secretaryOnly, resolveClass(deps.SchoolSvc, "id"))

	// grades, nested under the class
	cg.GET("/:id/grades", schAPI.gradeQuery, resolveClass(deps.SchoolSvc, "id"), scopedGradeQuery())
	cg.POST("/:id/grades", schAPI.gradeCreate, roleRequired(user.RoleProfessor, user.RoleSecretary), validateBody(school.GradeCreateSchema), resolveClass(deps.SchoolSvc, "id"), classTeachRequired())
	cg.GET("/:id/grades/:gradeId", schAPI.gradeRetrieve, resolveClass(deps.SchoolSvc, "id"), resolveGrade("gradeId"), gradeAccess())
	cg.PATCH("/:id/grades/:gradeId", schAPI.gradeUpdate, roleRequired(user.RoleProfessor, user.RoleSecretary), sanitizeBody(school.GradeUpdateSchema), resolveClass(deps.SchoolSvc, "id"), classTeachRequired(), resolveGrade("gradeId"))
	cg.DELETE("/:id/grades/:gradeId", schAPI.gradeDestroy, roleRequired(user.RoleProfessor, user.RoleSecretary), resolveClass(deps.SchoolSvc, "id"), classTeachRequired(), resolveGrade("gradeId"))
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *server) Start() error {
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "starting server")
	}
	return nil
}

// Stop drains in-flight requests until ctx expires, then force-closes.
func (s *server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		if cErr := s.echo.Close(); cErr != nil {
			return errors.Wrap(cErr, "closing server")
		}
		return errors.Wrap(err, "stopping server gracefully")
	}
	return nil
}
