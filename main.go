package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/earthtowalt/hide-and-seek/api"
	"github.com/earthtowalt/hide-and-seek/config"
	"github.com/earthtowalt/hide-and-seek/logger"
	"github.com/earthtowalt/hide-and-seek/maze"
	"github.com/earthtowalt/hide-and-seek/protocol"
	"github.com/earthtowalt/hide-and-seek/service"
	"github.com/earthtowalt/hide-and-seek/transport"
)

const shutdownTimeout = 5 * time.Second

// Global variables for dependencies
var (
	envs             config.Config
	grpcConnListener net.Listener
	grpcServer       *grpc.Server
	httpServer       *http.Server
	udpSocket        *transport.UDPSocket
	gameServer       *service.GameServer
	appLogger        *logger.Logger
)

func newLogger(name, color string) *logger.Logger {
	var opts []logger.Option
	if envs.LogFile != "" {
		opts = append(opts, logger.WithFile(envs.LogFile))
	}
	if envs.Debug {
		opts = append(opts, logger.WithDebug())
	}
	l, err := logger.New(name, color, os.Stdout, opts...)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating %s logger: %v", name, err))
		os.Exit(1)
	}
	return l
}

func initConfig() {
	var err error
	envs, err = config.Load()
	if err != nil {
		appLogger.Error(fmt.Sprintf("Loading configuration: %v", err))
		os.Exit(1)
	}
	appLogger = newLogger("APP", config.ColorGreen)
}

func initUDPSocket() {
	socket, err := transport.Listen(envs.UDPAddr())
	if err != nil {
		appLogger.Error(fmt.Sprintf("Opening UDP socket: %v", err))
		os.Exit(1)
	}
	udpSocket = socket
	appLogger.Info(fmt.Sprintf("UDP socket bound to %s", socket.LocalAddr()))
}

func initGameServer() {
	generator, err := maze.New(envs.MapSize, envs.MapCellSize)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating maze generator: %v", err))
		os.Exit(1)
	}

	server, err := service.NewGameServer(
		&service.Config{
			Socket:            udpSocket,
			Rules:             envs.Rules(),
			MapGenerator:      generator.Generate,
			Codec:             protocol.NewCodec(envs.MaxPacket),
			TickInterval:      envs.TickInterval(),
			BroadcastInterval: envs.BroadcastInterval,
			IdleTimeout:       envs.IdleTimeout,
			LoginRate:         rate.Limit(envs.LoginRate),
			LoginBurst:        envs.LoginBurst,
			Logger:            newLogger("GAME-SERVER", config.ColorCyan),
		},
	)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating game server: %v", err))
		os.Exit(1)
	}
	gameServer = server
	appLogger.Info("Game server initialized")
}

func initAdminController() {
	grpcServer = grpc.NewServer()
	api.RegisterAdminServer(grpcServer, gameServer)
	appLogger.Info("Admin controller initialized")
}

func initHTTPServer() {
	if !envs.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHTTPHandler(gameServer, envs.BroadcastInterval, newLogger("HTTP", config.ColorYellow))
	httpServer = &http.Server{
		Addr:              envs.HTTPAddr(),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	appLogger.Info("HTTP server initialized")
}

func serveGRPC() {
	var err error
	grpcConnListener, err = net.Listen("tcp", envs.GrpcAddr())
	if err != nil {
		appLogger.Error(fmt.Sprintf("Listening tcp: %v", err))
		os.Exit(1)
	}

	appLogger.Info(fmt.Sprintf("Serving gRPC at: %s", envs.GrpcAddr()))
	if err := grpcServer.Serve(grpcConnListener); err != nil {
		appLogger.Error(fmt.Sprintf("Serving gRPC: %v", err))
		os.Exit(1)
	}
}

func serveHTTP() {
	appLogger.Info(fmt.Sprintf("Serving HTTP at: %s", envs.HTTPAddr()))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLogger.Error(fmt.Sprintf("Serving HTTP: %v", err))
		os.Exit(1)
	}
}

func main() {
	appLogger, _ = logger.New("APP", config.ColorGreen, os.Stdout)
	initConfig()
	initUDPSocket()
	initGameServer()
	initAdminController()
	initHTTPServer()

	gameServer.Start()
	go serveGRPC()
	go serveHTTP()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	appLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warning(fmt.Sprintf("Stopping HTTP server: %v", err))
	}
	grpcServer.GracefulStop()
	gameServer.Stop()
	_ = appLogger.Sync()
}
