package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatepass-backend/internal/handler"
	"gatepass-backend/internal/middleware"
	"gatepass-backend/internal/service"
)

type Server struct {
	echo            *echo.Echo
	checkoutHandler *handler.CheckoutHandler
	adminHandler    *handler.AdminHandler
	jwtSecret       string
}

func NewServer(
	checkoutService service.CheckoutService,
	pollingService service.PollingService,
	payeeService service.PayeeService,
	registry *prometheus.Registry,
	jwtSecret string,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	adminHandler := handler.NewAdminHandler(pollingService, payeeService)

	s := &Server{
		echo:            e,
		checkoutHandler: checkoutHandler,
		adminHandler:    adminHandler,
		jwtSecret:       jwtSecret,
	}

	s.setupRoutes(registry)
	return s
}

func (s *Server) setupRoutes(registry *prometheus.Registry) {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	s.echo.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api.POST("/checkouts", s.checkoutHandler.CreateCheckout)

	// -------- admin / operator --------
	admin := api.Group("/admin", middleware.AdminAuth(s.jwtSecret))
	admin.POST("/polling/run", s.adminHandler.RunPollingCycle)
	admin.POST("/payees/:code/connect", s.adminHandler.ConnectPayee)
	admin.GET("/payees/:code/status", s.adminHandler.PayeeStatus)
	admin.POST("/payees/:code/disconnect", s.adminHandler.DisconnectPayee)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
