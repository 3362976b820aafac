package main

import (
	"context"
	"log/slog"
	"os"

	"splitapp-backend/config"
	"splitapp-backend/database"
	"splitapp-backend/handlers"
	"splitapp-backend/logging"
	"splitapp-backend/middleware"
	"splitapp-backend/services"

	"github.com/gin-gonic/gin"
)

func main() {
	logging.Setup()
	config.Load()

	database.Connect()

	// Redis is optional; without it balance invalidation stays in-process.
	database.ConnectRedis()

	ctx := context.Background()

	store := database.NewStore(database.DB)
	balanceSvc := services.NewBalanceService(store)
	defer balanceSvc.Stop()

	invalidator := services.NewBalanceInvalidator(database.Redis, balanceSvc)
	go invalidator.Listen(ctx)

	notifier := services.NewNotificationService(ctx)

	handlers.Setup(balanceSvc, invalidator, notifier)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": config.AppConfig.AppName,
		})
	})

	auth := r.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	{
		// User
		api.GET("/users/me", handlers.GetProfile)
		api.PUT("/users/me", handlers.UpdateProfile)
		api.PUT("/users/me/fcm-token", handlers.UpdateFCMToken)
		api.POST("/users/search", handlers.SearchUsers)

		// Friends
		api.GET("/friends", handlers.GetFriends)
		api.POST("/friends", handlers.AddFriend)
		api.PUT("/friends/:id/accept", handlers.AcceptFriend)
		api.POST("/friends/:id/payments", handlers.RecordFriendPayment)
		api.DELETE("/friends/:id", handlers.RemoveFriend)

		// Groups
		api.POST("/groups", handlers.CreateGroup)
		api.GET("/groups", handlers.GetGroups)
		api.GET("/groups/:id", handlers.GetGroup)
		api.PUT("/groups/:id", handlers.UpdateGroup)
		api.POST("/groups/:id/members", handlers.AddMember)
		api.DELETE("/groups/:id/members/:uid", handlers.RemoveMember)
		api.POST("/groups/:id/invite", handlers.InviteToGroupHandler)

		// Expenses
		api.POST("/groups/:id/expenses", handlers.CreateExpense)
		api.GET("/groups/:id/expenses", handlers.GetGroupExpenses)
		api.GET("/expenses/:id", handlers.GetExpense)
		api.PUT("/expenses/:id", handlers.UpdateExpense)
		api.DELETE("/expenses/:id", handlers.DeleteExpense)

		// Balances
		api.GET("/balances", handlers.GetBalances)
		api.POST("/balances/refresh", handlers.RefreshBalances)
		api.DELETE("/balances/cache", handlers.ClearBalanceCache)
		api.GET("/balances/stream", handlers.StreamBalances)
		api.GET("/balances/display-text", handlers.GetBalanceText)
		api.GET("/groups/:id/balances", handlers.GetGroupBalances)

		// Settlements
		api.POST("/groups/:id/settle", handlers.CreateSettlement)
		api.GET("/groups/:id/settlements", handlers.GetGroupSettlements)

		// Activity
		api.GET("/activity", handlers.GetActivity)
		api.GET("/groups/:id/activity", handlers.GetGroupActivity)
	}

	port := config.AppConfig.Port
	addr := "0.0.0.0:" + port
	slog.Info("server starting", "service", config.AppConfig.AppName, "addr", addr)
	if err := r.Run(addr); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
