package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Alexyn15/trangsucvn/app/auth"
	"github.com/Alexyn15/trangsucvn/app/controller"
	"github.com/Alexyn15/trangsucvn/app/database"
	ordergrpc "github.com/Alexyn15/trangsucvn/app/grpc"
	"github.com/Alexyn15/trangsucvn/app/middleware"
	"github.com/Alexyn15/trangsucvn/app/provider"
	"github.com/Alexyn15/trangsucvn/app/repository"
	"github.com/Alexyn15/trangsucvn/app/service"
	"github.com/Alexyn15/trangsucvn/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the orders service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, orderService, cleanup := mustCreateOrderService()
	defer cleanup()

	orderController := controller.NewOrderController(orderService, cfg.VNPay.ResultPageURL)
	grpcOrderServer := ordergrpc.NewServer(orderService)

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	e := setupHTTPServer(cfg, orderController, echoInternalAuthMiddleware)
	grpcSrv, lis := setupGRPCServer(cfg, grpcOrderServer, grpcInternalAuthMiddleware)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	cfg *config.Config,
	orderController *controller.OrderController,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"request_id": v.RequestID,
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", orderController.Health)

	requireUser := middleware.AuthRequired(cfg.JWT)

	orders := e.Group("/api/orders")
	orders.GET("/vnpay-return", orderController.VNPayReturn)
	orders.GET("/vnpay-ipn", orderController.VNPayIPN)
	orders.POST("", orderController.CreateOrder, requireUser)
	orders.GET("/my-orders", orderController.ListMyOrders, requireUser)
	orders.GET("/:id", orderController.GetOrder, requireUser)
	orders.PUT("/reference/:reference/pay", orderController.MarkPaid, requireUser)

	admin := e.Group("/api/admin/orders", requireUser, middleware.RequireRole(auth.RoleAdmin))
	admin.GET("", orderController.ListOrders)
	admin.PUT("/:id", orderController.UpdateFulfillmentStatus)
	admin.GET("/:id/events", orderController.ListOrderEvents)

	callbacks := e.Group("/api/admin/payment-callbacks", requireUser, middleware.RequireRole(auth.RoleAdmin))
	callbacks.GET("", orderController.ListPaymentCallbacks)

	internal := e.Group("/internal/orders", internalAuthMiddleware.RequireInternalAccess(cfg.App.ServiceName))
	internal.GET("/:reference", orderController.GetOrderByReference)

	return e
}

func setupGRPCServer(
	cfg *config.Config,
	orderServer *ordergrpc.Server,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			ordergrpc.RecoveryInterceptor(),
			ordergrpc.RequestIDInterceptor(),
			ordergrpc.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(cfg.App.ServiceName),
		),
	)
	ordergrpc.RegisterOrdersServiceServer(grpcSrv, orderServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(ordergrpc.OrdersServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	return grpcSrv, lis
}

func mustCreateOrderService() (*config.Config, *service.OrderService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	orderRepo := repository.NewOrderRepository(db)
	eventRepo := repository.NewOrderEventRepository(db)
	callbackRepo := repository.NewPaymentCallbackRepository(db)
	productRepo := repository.NewProductRepository(db)

	vnpayProvider := provider.NewVNPayProviderFromConfig(cfg.VNPay)
	if err := vnpayProvider.Validate(); err != nil {
		logrus.WithError(err).Warn("VNPay is not configured, checkout and callbacks will be rejected")
	}

	orderService := service.NewOrderService(
		orderRepo,
		eventRepo,
		callbackRepo,
		productRepo,
		vnpayProvider,
		cfg.Orders,
		cfg.VNPay.DebugSigning,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, orderService, cleanup
}
