package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pub-desk/auth"
	"pub-desk/config"
	"pub-desk/models"
	"pub-desk/services"
	"pub-desk/storage"
)

var (
	publicationsSubmitted prometheus.Counter
	reviewsSubmitted      prometheus.Counter
	orphanFilesRemoved    prometheus.Counter
)

func init() {
	publicationsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "publications_submitted_total",
		Help: "Total number of publications submitted.",
	})
	reviewsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reviews_submitted_total",
		Help: "Total number of review decisions submitted.",
	})
	orphanFilesRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orphan_files_removed_total",
		Help: "Total number of orphaned publication files removed by the sweep job.",
	})
	prometheus.MustRegister(publicationsSubmitted, reviewsSubmitted, orphanFilesRemoved)
}

const userContextKey = "currentUser"

// authRequired löst das Bearer-Token zu einem lebenden Konto auf und bricht
// ohne gültiges Token ab. Ein Datenbankfehler bei der Auflösung ist kein
// Token-Problem und wird als Serverfehler gemeldet.
func authRequired(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolveBearer(c, users)
		if err != nil || user == nil {
			if err != nil && !errors.Is(err, auth.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server Error"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized, token failed"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// authOptional hängt das Konto an den Kontext, wenn ein gültiges Token
// mitkommt, lässt anonyme Aufrufer aber durch.
func authOptional(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, err := resolveBearer(c, users); err == nil && user != nil {
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

func resolveBearer(c *gin.Context, users *services.UserService) (*models.User, error) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, auth.ErrInvalidToken
	}
	return users.Resolve(strings.TrimPrefix(header, "Bearer "))
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// respondError übersetzt die Fehler-Taxonomie des Kerns in HTTP-Antworten.
// Infrastrukturfehler werden serverseitig geloggt und generisch gemeldet.
func respondError(c *gin.Context, logging *zap.Logger, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": ve.Message})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Not authorized, token failed"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not authorized to perform this action"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Resource not found"})
	case errors.Is(err, services.ErrNotReviewable):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Publication is not currently pending review"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Duplicate value entered. This value must be unique."})
	default:
		logging.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server Error"})
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.User{}, &models.Publication{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup File Storage
	files, err := storage.NewFileStore(cfg.UploadRoot, cfg.MaxUploadSize(), logging)
	if err != nil {
		logging.Fatal("File store creation failed", zap.Error(err))
	}

	// Setup Services
	userService := services.NewUserService(db, logging, cfg.JWTSecret, cfg.JWTTTL)
	pubService := services.NewPublicationService(db, files, logging)

	// Setup Router
	router := gin.Default()
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/uploads/publications", files.Root)

	// Setup Routes
	setupAuthRoutes(router, userService, logging)
	setupPublicationRoutes(router, pubService, userService, logging)
	setupUserRoutes(router, userService, logging)

	// Setup Cron: verwaiste Dateien regelmäßig entfernen
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.SweepSchedule, func() {
		logging.Info("Running scheduled orphan file sweep...")
		removed, err := pubService.SweepOrphans()
		if err != nil {
			logging.Error("Orphan sweep failed", zap.Error(err))
		} else {
			logging.Info("Orphan sweep completed", zap.Int("removed", removed))
			orphanFilesRemoved.Add(float64(removed))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupAuthRoutes(router *gin.Engine, users *services.UserService, logging *zap.Logger) {
	rg := router.Group("/api/auth")

	// Registrierung ist öffentlich; ein bereits eingeloggter Admin darf eine
	// Rolle vorgeben.
	rg.POST("/register", authOptional(users), func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}

		user, token, err := users.Register(currentUser(c), req.Username, req.Email, req.Password, models.Role(req.Role))
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": user, "token": token})
	})

	rg.POST("/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}

		user, token, err := users.Login(req.Email, req.Password)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": user, "token": token})
	})

	rg.GET("/me", authRequired(users), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": currentUser(c)})
	})
}

func setupPublicationRoutes(router *gin.Engine, pubs *services.PublicationService, users *services.UserService, logging *zap.Logger) {
	rg := router.Group("/api/publications")

	// Öffentliche Suche über veröffentlichte Publikationen.
	rg.GET("", func(c *gin.Context) {
		filter := services.ParsePublicationFilter(c.Request.URL.Query())
		page, err := pubs.ListPublic(filter)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"count":      len(page.Items),
			"total":      page.Pagination.Total,
			"pagination": page.Pagination,
			"data":       page.Items,
		})
	})

	rg.POST("", authRequired(users), func(c *gin.Context) {
		file, err := c.FormFile("publicationPdf")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Publication PDF file is required."})
			return
		}

		pub, err := pubs.Create(currentUser(c), publicationInputFromForm(c), file)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		publicationsSubmitted.Inc()
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": pub})
	})

	rg.GET("/my-publications", authRequired(users), func(c *gin.Context) {
		list, err := pubs.ListMine(currentUser(c))
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": list})
	})

	rg.GET("/review/queue", authRequired(users), func(c *gin.Context) {
		list, err := pubs.ReviewQueue(currentUser(c))
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": list})
	})

	rg.GET("/admin/all", authRequired(users), func(c *gin.Context) {
		filter := services.ParsePublicationFilter(c.Request.URL.Query())
		page, err := pubs.AdminList(currentUser(c), filter)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"count":      len(page.Items),
			"total":      page.Pagination.Total,
			"pagination": page.Pagination,
			"data":       page.Items,
		})
	})

	rg.GET("/:id", authOptional(users), func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		pub, err := pubs.Get(currentUser(c), id)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": pub})
	})

	rg.PUT("/:id", authRequired(users), func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		// Ersatzdatei ist optional.
		file, err := c.FormFile("publicationPdf")
		if err != nil {
			file = nil
		}

		pub, err := pubs.Update(currentUser(c), id, publicationInputFromForm(c), file)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": pub})
	})

	rg.DELETE("/:id", authRequired(users), func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := pubs.Delete(currentUser(c), id); err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Publication removed"})
	})

	rg.PUT("/review/:id", authRequired(users), func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req struct {
			Status           string `json:"status"`
			ReviewerComments string `json:"reviewerComments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}

		pub, err := pubs.SubmitReview(currentUser(c), id, models.Status(req.Status), req.ReviewerComments)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		reviewsSubmitted.Inc()
		c.JSON(http.StatusOK, gin.H{"success": true, "data": pub})
	})

	rg.DELETE("/admin/:id", authRequired(users), func(c *gin.Context) {
		actor := currentUser(c)
		if actor == nil || actor.Role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not authorized to perform this action"})
			return
		}
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := pubs.Delete(actor, id); err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Publication removed by admin"})
	})
}

func setupUserRoutes(router *gin.Engine, users *services.UserService, logging *zap.Logger) {
	rg := router.Group("/api/users", authRequired(users))

	rg.GET("", func(c *gin.Context) {
		list, err := users.List(currentUser(c), models.Role(c.Query("role")))
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": list})
	})

	rg.POST("/add-reviewer", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}

		reviewer, err := users.AddReviewer(currentUser(c), req.Username, req.Email, req.Password)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Reviewer added successfully", "data": reviewer})
	})

	rg.GET("/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		user, err := users.Get(currentUser(c), id)
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
	})

	rg.PUT("/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Role     string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
			return
		}

		user, err := users.Update(currentUser(c), id, req.Username, req.Email, models.Role(req.Role))
		if err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if err := users.Delete(currentUser(c), id); err != nil {
			respondError(c, logging, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "User removed"})
	})
}

// parseID liest den :id-Parameter; eine unbrauchbare ID verhält sich wie ein
// fehlender Datensatz.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Resource not found"})
		return 0, false
	}
	return uint(id), true
}

// publicationInputFromForm übernimmt nur die tatsächlich mitgesendeten
// Formularfelder. Die Autorenliste kommt als JSON-Array-String oder als
// wiederholtes Feld.
func publicationInputFromForm(c *gin.Context) services.PublicationInput {
	input := services.PublicationInput{
		Title:             formValue(c, "title"),
		Description:       formValue(c, "description"),
		Category:          formValue(c, "category"),
		DOI:               formValue(c, "doi"),
		DateOfPublication: formValue(c, "dateOfPublication"),
		Volume:            formValue(c, "volume"),
	}

	if raw, ok := c.GetPostForm("authorNames"); ok {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err == nil {
			input.AuthorNames = names
		} else {
			input.AuthorNames = c.PostFormArray("authorNames")
		}
	} else if arr := c.PostFormArray("authorNames"); len(arr) > 0 {
		input.AuthorNames = arr
	}
	return input
}

func formValue(c *gin.Context, key string) *string {
	if v, ok := c.GetPostForm(key); ok {
		return &v
	}
	return nil
}
