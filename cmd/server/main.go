// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"examforge-go/internal/config"
	"examforge-go/internal/handler"
	"examforge-go/internal/middleware"
	"examforge-go/internal/pipeline"
	"examforge-go/internal/repository"
	"examforge-go/internal/service"
	"examforge-go/pkg/database"
	"examforge-go/pkg/es"
	"examforge-go/pkg/kafka"
	"examforge-go/pkg/llm"
	"examforge-go/pkg/log"
	"examforge-go/pkg/storage"
	"examforge-go/pkg/tika"
	"examforge-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库与外部依赖
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	subjectRepo := repository.NewSubjectRepository(database.DB)
	materialRepo := repository.NewMaterialRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	llmClient := llm.NewClient(cfg.OpenRouter)
	userService := service.NewUserService(userRepo, jwtManager)
	attachmentService := service.NewAttachmentService(tikaClient)
	contextService := service.NewContextService(materialRepo, database.RDB)
	conversationService := service.NewConversationService(conversationRepo, messageRepo)
	chatService := service.NewChatService(conversationRepo, messageRepo, subjectRepo, contextService, attachmentService, llmClient, cfg.AI)
	askService := service.NewAskService(subjectRepo, materialRepo, llmClient, cfg.AI)
	uploadService := service.NewUploadService(materialRepo, cfg.MinIO)
	searchService := service.NewSearchService(es.ESClient, cfg.Elasticsearch)

	// 6. 初始化资料提取管道并启动后台 Kafka 消费者
	processor := pipeline.NewProcessor(tikaClient, cfg.Elasticsearch, cfg.MinIO, materialRepo)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
			}
		}

		// AI 对话路由组，需要认证
		ai := apiV1.Group("/ai")
		ai.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chatHandler := handler.NewChatHandler(chatService)
			conversationHandler := handler.NewConversationHandler(conversationService)
			ai.POST("/chat", chatHandler.Chat)
			ai.GET("/conversations", conversationHandler.List)
			ai.GET("/conversations/:id/messages", conversationHandler.GetMessages)
			ai.DELETE("/conversations/:id", conversationHandler.Delete)
			ai.POST("/ask", handler.NewAskHandler(askService).Ask)
		}

		// 学科与资料路由组，需要认证
		materialHandler := handler.NewMaterialHandler(uploadService, searchService)
		subjectHandler := handler.NewSubjectHandler(subjectRepo)

		subjects := apiV1.Group("/subjects")
		subjects.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			subjects.GET("", subjectHandler.List)
		}

		materials := apiV1.Group("/materials")
		materials.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			materials.GET("/search", materialHandler.Search)
		}

		// 管理员路由组，需要认证 + 管理员权限
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtManager, userService), middleware.AdminAuthMiddleware())
		{
			admin.POST("/materials", materialHandler.Upload)
			admin.POST("/subjects", subjectHandler.Create)
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
