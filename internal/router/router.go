package router

import (
	"log"
	"time"

	"lynxx/config"
	"lynxx/internal/booking"
	"lynxx/internal/handler"
	"lynxx/internal/ledger"
	"lynxx/internal/middleware"
	"lynxx/internal/repository"
	"lynxx/internal/service"
	"lynxx/internal/ws"
	"lynxx/pkg/cloudinary"
	"lynxx/pkg/payment"
	"lynxx/pkg/videoroom"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the wired services shared with main (scheduler, shutdown).
type Deps struct {
	Ledger   *ledger.Service
	Booking  *booking.Service
	Payment  *repository.PaymentRepository
	Events   chan ledger.Event
	Hub      *ws.Hub
	Notifier *service.NotificationService
}

func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client) (*gin.Engine, *Deps) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	giftRepo := repository.NewGiftRepository(db)
	rateRepo := repository.NewRateRepository(db)
	dateRepo := repository.NewVideoDateRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	hub := ws.NewHub()

	// Providers
	var payProvider payment.Provider
	if cfg.Stripe.APIKey != "" {
		payProvider = payment.NewStripeProvider(cfg.Stripe.APIKey)
	} else {
		log.Printf("[payments] STRIPE_API_KEY not set, using stub provider")
		payProvider = &payment.StubProvider{}
	}
	var roomProvider videoroom.Provider
	if cfg.VideoRoom.APIKey != "" {
		roomProvider = videoroom.NewDailyProvider(cfg.VideoRoom.BaseURL, cfg.VideoRoom.APIKey)
	} else {
		log.Printf("[videoroom] VIDEOROOM_API_KEY not set, using stub provider")
		roomProvider = &videoroom.StubProvider{}
	}

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	fcmSvc := service.NewFCMService(cfg.Firebase.ServiceAccountPath)
	if fcmSvc != nil {
		log.Printf("[FCM] Push notifications enabled")
	} else if cfg.Firebase.ServiceAccountPath != "" {
		log.Printf("[FCM] Push notifications disabled: failed to init (check service account file)")
	} else {
		log.Printf("[FCM] Push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}
	notifSvc := service.NewNotificationService(notificationRepo, userRepo, fcmSvc, hub)

	// Ledger events feed the async notifier; buffered so commits never block.
	events := make(chan ledger.Event, 256)
	ledgerSvc := ledger.NewService(db, &cfg.Ledger, walletRepo, txRepo, giftRepo, withdrawalRepo, dateRepo, events)
	bookingSvc := booking.NewService(cfg, dateRepo, rateRepo, userRepo, ledgerSvc, roomProvider, notifSvc)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc, auditRepo, userRepo)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc, auditRepo, userRepo)
	meHandler := handler.NewMeHandler(userRepo)
	walletHandler := handler.NewWalletHandler(walletRepo, txRepo)
	purchaseHandler := handler.NewPurchaseHandler(cfg, paymentRepo, payProvider)
	paymentWebhookHandler := handler.NewPaymentWebhookHandler(cfg, paymentRepo, ledgerSvc, payProvider)
	giftHandler := handler.NewGiftHandler(giftRepo, userRepo, ledgerSvc, notifSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc, dateRepo, userRepo, notifSvc)
	ratesHandler := handler.NewRatesHandler(rateRepo, userRepo)
	withdrawalHandler := handler.NewWithdrawalHandler(ledgerSvc, withdrawalRepo, userRepo, payProvider)
	withdrawalWebhookHandler := handler.NewWithdrawalWebhookHandler(cfg, ledgerSvc, payProvider)
	mediaHandler := handler.NewMediaHandler(mediaRepo, ledgerSvc, cloud)
	messageHandler := handler.NewMessageHandler(msgRepo, userRepo, ledgerSvc, hub, notifSvc)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)
	adultMw := middleware.AdultOnly(userRepo)
	earnerMw := middleware.RequireRole("EARNER")

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.PATCH("/change-password", authMw, authHandler.ChangePassword)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", googleOAuthHandler.Callback)
			authGroup.POST("/google/token", googleOAuthHandler.Token)
		}

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("", meHandler.Get)
			me.POST("/fcm-token", authHandler.UpdateFCMToken)
			me.GET("/wallet", walletHandler.GetBalance)
			me.GET("/wallet/transactions", walletHandler.ListTransactions)
			me.GET("/notifications", notificationHandler.List)
			me.PUT("/notifications/:id/read", notificationHandler.MarkRead)
			me.GET("/gifts/received", giftHandler.Received)
			me.GET("/withdrawals", withdrawalHandler.List)
		}

		earner := api.Group("/earner")
		earner.Use(authMw, adultMw, earnerMw)
		{
			earner.PATCH("/profile", meHandler.UpdateEarnerProfile)
			earner.PUT("/rates", ratesHandler.Update)
			earner.POST("/media", mediaHandler.Upload)
			earner.POST("/withdrawals", withdrawalHandler.Create)
		}

		paid := api.Group("")
		paid.Use(authMw, adultMw)
		{
			paid.GET("/packages", purchaseHandler.ListPackages)
			paid.POST("/purchases", purchaseHandler.Create)
			paid.GET("/purchases/:id", purchaseHandler.Get)
			paid.GET("/gifts", giftHandler.Catalog)
			paid.POST("/gifts/send", giftHandler.Send)
			paid.POST("/gifts/:id/thank-you", giftHandler.ThankYou)
			paid.GET("/earners/:earnerId/rates", ratesHandler.Get)
			paid.GET("/earners/:earnerId/media", mediaHandler.List)
			paid.POST("/media/:id/unlock", mediaHandler.Unlock)
			paid.DELETE("/media/:id", mediaHandler.Delete)
			paid.POST("/messages", messageHandler.Send)
			paid.GET("/messages/:userId", messageHandler.Conversation)
			paid.POST("/dates", bookingHandler.Book)
			paid.GET("/dates", bookingHandler.List)
			paid.GET("/dates/:id", bookingHandler.Get)
			paid.POST("/dates/:id/join", bookingHandler.JoinToken)
			paid.POST("/dates/:id/cancel", bookingHandler.Cancel)
			paid.POST("/dates/:id/complete", bookingHandler.Complete)
		}

		api.POST("/webhooks/payment", paymentWebhookHandler.Handle)
		api.POST("/webhooks/withdrawal", withdrawalWebhookHandler.Handle)
	}

	r.GET("/ws", ws.UpgradeUserWS(&cfg.JWT, hub))

	return r, &Deps{
		Ledger:   ledgerSvc,
		Booking:  bookingSvc,
		Payment:  paymentRepo,
		Events:   events,
		Hub:      hub,
		Notifier: notifSvc,
	}
}
