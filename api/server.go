package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/novaclub/club-sync/catalog"
	"github.com/novaclub/club-sync/middleware"
	"github.com/novaclub/club-sync/store"
	"github.com/novaclub/club-sync/syncer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Version = "1.0.0"

// Server is the REST API of the back office.
type Server struct {
	storage  store.SyncStorage
	syncer   *syncer.Syncer
	auth     *middleware.Authenticator
	router   *gin.Engine
	onChange func(clubID string, applied syncer.Applied)
}

func NewServer(storage store.SyncStorage, sync *syncer.Syncer, auth *middleware.Authenticator) *Server {
	router := gin.New()
	router.Use(gin.LoggerWithWriter(log.Writer()), gin.Recovery())

	s := &Server{
		storage: storage,
		syncer:  sync,
		auth:    auth,
		router:  router,
	}

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", s.handleRegister)
		v1.POST("/auth/login", s.handleLogin)
	}

	authed := v1.Group("", s.requireAuth)
	{
		authed.GET("/auth/me", s.handleMe)
		authed.GET("/clubs/my-club", s.handleMyClub)

		employees := authed.Group("/employees", requireAdmin)
		employees.GET("", s.handleListEmployees)
		employees.POST("", s.handleCreateEmployee)
		employees.PUT("/:id", s.handleUpdateEmployee)
		employees.DELETE("/:id", s.handleDeleteEmployee)

		for _, kind := range catalog.Kinds() {
			s.registerEntity(authed.Group("/"+kind.Name()), kind)
		}
		// purchases are also served under their equipment
		s.registerEntity(authed.Group("/equipment/purchases"), catalog.EquipmentPurchases)

		authed.POST("/sync/pull", s.handlePull)
		authed.POST("/sync/push", s.handlePush)
	}

	return s
}

// OnChange registers fn to be called after every record written through
// the entity routes. Pushed records are reported by the syncer.
func (s *Server) OnChange(fn func(clubID string, applied syncer.Applied)) {
	s.onChange = fn
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "NovaClub API",
		"version": Version,
		"status":  "online",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) requireAuth(c *gin.Context) {
	token := ""
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			token = value
		}
	}
	principal, err := s.auth.Authenticate(c.Request.Context(), token, c.GetHeader("X-Api-Key"))
	if err != nil {
		abortAuth(c, err)
		return
	}
	c.Request = c.Request.WithContext(middleware.WithPrincipal(c.Request.Context(), principal))
	c.Next()
}

func requireAdmin(c *gin.Context) {
	if !principal(c).IsAdmin() {
		abort(c, http.StatusForbidden, "Only admins can manage employees")
		return
	}
	c.Next()
}

func principal(c *gin.Context) *middleware.Principal {
	p, _ := middleware.PrincipalFromContext(c.Request.Context())
	return p
}

func abort(c *gin.Context, code int, detail string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": detail})
}

func abortAuth(c *gin.Context, err error) {
	switch {
	case errors.Is(err, middleware.ErrInactiveUser):
		abort(c, http.StatusForbidden, "User account is inactive")
	case errors.Is(err, middleware.ErrInternalError):
		log.Printf("authentication failed: %v", err)
		abort(c, http.StatusInternalServerError, "Internal server error")
	default:
		c.Header("WWW-Authenticate", "Bearer")
		abort(c, http.StatusUnauthorized, "Could not validate credentials")
	}
}

// abortStore renders a store or validation error.
func abortStore(c *gin.Context, err error) {
	var fe *catalog.FieldError
	switch {
	case errors.As(err, &fe):
		abort(c, http.StatusBadRequest, fe.Error())
	case errors.Is(err, store.ErrNotFound):
		abort(c, http.StatusNotFound, "Record not found")
	case errors.Is(err, store.ErrExists), errors.Is(err, store.ErrForeignRecord):
		abort(c, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrEmailTaken):
		abort(c, http.StatusBadRequest, "Email already registered")
	default:
		log.Printf("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		abort(c, http.StatusInternalServerError, "Internal server error")
	}
}
