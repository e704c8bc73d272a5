package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"gatebot/cmd/fx/controllers_fx"
	"gatebot/cmd/fx/db_fx"
	"gatebot/cmd/fx/funnel_fx"
	"gatebot/cmd/fx/gateway_fx"
	"gatebot/cmd/fx/granter_fx"
	"gatebot/cmd/fx/ledger_fx"
	"gatebot/cmd/fx/notifier_fx"
	"gatebot/cmd/fx/session_fx"
	"gatebot/cmd/fx/telegram_fx"
	"gatebot/internal/api/controllers"
	"gatebot/internal/bot"
	"gatebot/internal/services"
	"gatebot/pkg/middleware"
	"gatebot/pkg/tglog"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	app := fx.New(
		db_fx.Module,
		ledger_fx.Module,
		telegram_fx.Module,
		gateway_fx.Module,
		session_fx.Module,
		granter_fx.Module,
		notifier_fx.Module,
		funnel_fx.Module,
		controllers_fx.Module,

		fx.Provide(ProvideBot),
		fx.Provide(ProvideRouter),
		fx.Invoke(ConfigureLogging),
		fx.Invoke(StartBot),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func ProvideBot(api *tgbotapi.BotAPI, funnel services.IFunnelService) *bot.Bot {
	return bot.New(api, funnel)
}

// ConfigureLogging tees log output into the operator log channel when one
// is configured.
func ConfigureLogging(api *tgbotapi.BotAPI) {
	raw := os.Getenv("LOG_CHANNEL_ID")
	if raw == "" {
		return
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("Ignoring invalid LOG_CHANNEL_ID %q: %v", raw, err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, tglog.NewWriter(api, chatID)))
}

func StartBot(lc fx.Lifecycle, b *bot.Bot) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go b.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			log.Println("Stopping bot")
			cancel()
			return nil
		},
	})
}

func ProvideRouter(
	authController *controllers.AuthController,
	chargesController *controllers.ChargesController) *gin.Engine {

	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())

	RegisterRoutes(r, authController, chargesController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	authController *controllers.AuthController,
	chargesController *controllers.ChargesController) {

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/login", authController.Login)

	chargesGroup := r.Group("/charges")
	chargesGroup.Use(middleware.JWTAuthMiddleware(), middleware.RoleMiddleware("admin"))
	chargesGroup.GET("", chargesController.ListByUser)
	chargesGroup.GET("/stats", chargesController.Stats)
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Println("Starting HTTP server at ${PORT}")
				if err := engine.Run(":" + os.Getenv("PORT")); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Stopping HTTP server")
			return nil
		},
	})
}
