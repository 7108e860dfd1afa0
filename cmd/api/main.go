package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campustrack/internal/attendance"
	"campustrack/internal/cloudinary"
	"campustrack/internal/config"
	"campustrack/internal/faceclient"
	"campustrack/internal/handler"
	"campustrack/internal/httpmiddleware"
	"campustrack/internal/mailer"
	"campustrack/internal/otp"
	"campustrack/internal/queue"
	"campustrack/internal/store"
	"campustrack/internal/student"
	"campustrack/internal/user"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisDialTimeout, cfg.RedisOpTimeout)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campustrack:audit")
	}

	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceTimeout, cfg.FaceSkip)

	recordRepo := attendance.NewRepository(db.Client)
	studentRepo := student.NewRepository(db.Client)
	userRepo := user.NewRepository(db.Client)

	otpStore := otp.NewStore(redisClient.Client, cfg.OTPTTL)
	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)

	attSvc := attendance.NewService(
		recordRepo,
		studentDirectory{repo: studentRepo},
		reviewerDirectory{repo: userRepo},
		face,
		attendance.NewQueueAudit(q),
		cfg.LateCutoffHour, cfg.LateCutoffMinute,
		nil,
	)
	studentSvc := student.NewService(studentRepo, otpStore, mail, otp.GenerateCode)
	userSvc := user.NewService(userRepo)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	h := handler.New(cfg, attSvc, recordRepo, studentSvc, studentRepo, userSvc, userRepo, cdnClient)
	h.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// studentDirectory adapts the student repository to the intake lookup.
type studentDirectory struct {
	repo *student.Repository
}

func (d studentDirectory) Lookup(ctx context.Context, id string) (*attendance.StudentInfo, error) {
	st, err := d.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attendance.StudentInfo{
		ID:         st.ID,
		Name:       st.Name,
		RegisterNo: st.RegisterNo,
		Department: st.Department,
		Year:       st.Year,
		ImageURL:   st.ImageURL,
	}, nil
}

// reviewerDirectory resolves reviewer names against the users table.
type reviewerDirectory struct {
	repo *user.Repository
}

func (d reviewerDirectory) ByName(ctx context.Context, name string) (string, error) {
	u, err := d.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", attendance.ErrReviewerNotFound
		}
		return "", err
	}
	return u.ID, nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
