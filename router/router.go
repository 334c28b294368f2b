package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeremiapane/restaurant-floor-sync/controllers"
	"github.com/yeremiapane/restaurant-floor-sync/kds"
	"github.com/yeremiapane/restaurant-floor-sync/middlewares"
	"gorm.io/gorm"
)

// Options -> dependensi router selain database
type Options struct {
	Hub         *kds.Hub
	Gatherer    prometheus.Gatherer
	RateLimiter *middlewares.RateLimiter
	CORSOrigin  string
}

func SetupRouter(db *gorm.DB, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(opts.CORSOrigin))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	orderCtrl := controllers.NewOrderController(db)
	tableCtrl := controllers.NewTableController(db)
	workdayCtrl := controllers.NewWorkdayController(db)
	restaurantCtrl := controllers.NewRestaurantController(db)
	userCtrl := controllers.NewUserController(db)
	menuCtrl := controllers.NewMenuController(db)
	kitchenCtrl := controllers.NewKitchenController(db)
	reportCtrl := controllers.NewReportController(db)

	orders := r.Group("/orders")
	{
		orders.GET("", orderCtrl.GetAllOrders)
		orders.POST("", orderCtrl.CreateOrder)
		orders.POST("/:order_id/complete", orderCtrl.CompleteOrder)
		orders.POST("/:order_id/reopen", orderCtrl.ReopenOrder)
	}

	tables := r.Group("/tables")
	{
		tables.GET("", tableCtrl.GetAllTables)
		tables.POST("", tableCtrl.CreateTable)
		tables.GET("/activity", tableCtrl.GetTableActivity)
		tables.POST("/:table_id/activate", tableCtrl.ActivateTable)
		tables.POST("/:table_id/deactivate", tableCtrl.DeactivateTable)
		tables.GET("/:table_id/sessions", reportCtrl.GetTableSessions)
	}

	workdays := r.Group("/workdays")
	{
		workdays.GET("", workdayCtrl.GetWorkdays)
		workdays.POST("/start", workdayCtrl.StartWorkday)
		workdays.POST("/end", workdayCtrl.EndWorkday)
		workdays.POST("/join", workdayCtrl.JoinWorkday)
	}

	r.GET("/restaurant", restaurantCtrl.GetRestaurant)
	r.PATCH("/restaurant", restaurantCtrl.UpdateRestaurant)

	users := r.Group("/users")
	{
		users.GET("", userCtrl.GetAllUsers)
		users.POST("", userCtrl.CreateUser)
		users.PATCH("/:user_id/role", userCtrl.UpdateRole)
		users.POST("/:user_id/token", userCtrl.IssueTerminalToken)
	}

	r.GET("/menus", menuCtrl.GetAllMenus)
	r.POST("/menus", menuCtrl.CreateMenu)

	r.POST("/kitchen/alert", kitchenCtrl.SendAlert)

	r.GET("/shifts", reportCtrl.GetShifts)
	r.GET("/shifts/active", reportCtrl.GetActiveShift)
	r.GET("/sessions", reportCtrl.GetSessions)

	if opts.Hub != nil {
		kdsCtrl := controllers.NewKDSController(opts.Hub)
		kdsGroup := r.Group("/kds")
		kdsGroup.GET("/presence", kdsCtrl.GetPresence)

		wsHandlers := []gin.HandlerFunc{}
		if opts.RateLimiter != nil {
			wsHandlers = append(wsHandlers, opts.RateLimiter.RateLimit())
		}
		wsHandlers = append(wsHandlers, middlewares.WebSocketIdentity(), kdsCtrl.KDSHandler)
		kdsGroup.GET("/ws", wsHandlers...)
	}

	return r
}
