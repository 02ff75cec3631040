package main

import (
	"time"

	"dokon-pos/internal/auth"
	"dokon-pos/internal/config"
	"dokon-pos/internal/database"
	"dokon-pos/internal/handlers"
	"dokon-pos/internal/middleware"
	"dokon-pos/internal/realtime"
	"dokon-pos/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	issuer := auth.NewIssuer(cfg.JWTSecret)

	db, err := database.Connect(cfg.DBDSN, log)
	if err != nil {
		log.Fatal("database connect failed", zap.Error(err))
	}

	hub := realtime.NewHub(log)

	orders := service.NewOrderService(db, hub, log)
	refunds := service.NewRefundService(db, hub, log)
	products := service.NewProductService(db, hub, log)
	categories := service.NewCategoryService(db)
	stock := service.NewStockService(db)
	h := handlers.New(db, orders, refunds, products, categories, stock, issuer, log, cfg.BaseURL)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "online"}) })
	r.POST("/login", h.Login)
	r.GET("/ws", func(c *gin.Context) { hub.ServeWS(c.Writer, c.Request) })
	r.Static("/uploads", "./uploads")

	if cfg.AllowRegistration {
		r.POST("/register", h.Register)
		log.Warn("registration route is open, disable ALLOW_REGISTRATION in production")
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(issuer))
	{
		// ALL STAFF
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/scan/:barcode", h.ScanProduct)
		api.GET("/categories", h.ListCategories)

		api.POST("/orders", h.CreateOrder)
		api.GET("/orders/my", h.ListMyOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.PUT("/orders/:id", h.UpdateOrder)

		// CASHIER DESK AND UP
		desk := api.Group("/")
		desk.Use(middleware.RequireRole(service.RoleCashier, service.RoleAdmin, service.RoleOwner))
		{
			desk.GET("/orders", h.ListOrders)
			desk.PATCH("/orders/:id/status", h.UpdateOrderStatus)
			desk.PATCH("/orders/:id/printed", h.MarkOrderPrinted)
			desk.POST("/orders/:id/refund", h.ProcessRefund)
		}

		// ADMIN ONLY
		admin := api.Group("/")
		admin.Use(middleware.RequireRole(service.RoleAdmin, service.RoleOwner))
		{
			admin.POST("/upload", h.UploadImage)
			admin.POST("/products", h.AddProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.DELETE("/products/:id", h.DeleteProduct)
			admin.POST("/products/:id/discount", h.SetProductDiscount)
			admin.DELETE("/products/:id/discount", h.RemoveProductDiscount)
			admin.POST("/products/:id/stock", h.AddStock)

			admin.POST("/categories", h.AddCategory)
			admin.PUT("/categories/:id", h.UpdateCategory)
			admin.DELETE("/categories/:id", h.DeleteCategory)

			admin.GET("/refunds", h.ListRefunds)
			admin.GET("/stock-history", h.StockHistory)
		}
	}

	log.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal("server failed to start", zap.Error(err))
	}
}
