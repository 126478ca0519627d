package main

import (
	"fmt"
	"net"

	"rank-observer/src/config"
	datasource "rank-observer/src/data_source"
	"rank-observer/src/grpc_control"
	"rank-observer/src/interfaces"
	"rank-observer/src/logger"
	"rank-observer/src/scheduler"
	"rank-observer/src/server"
	"rank-observer/src/tracker"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// startServers starts the display server and the gRPC control server
func startServers(
	display *server.DisplayServer,
	config *config.Config,
	configPath string,
	registry *datasource.SourceRegistry,
	rankTracker *tracker.Tracker,
	networkManager interfaces.INetworkManager,
	tickScheduler *scheduler.TickScheduler,
	appLogger *logger.Logger,
) *grpc.Server {

	// 1. gRPC Control Server
	grpcServer := grpc.NewServer()
	controlService := grpc_control.NewControlService(
		config,
		configPath,
		registry,
		rankTracker,
		newSourceFactory(config.MConfig, networkManager),
		logger.NewLogger(config, "ControlService"),
	)
	controlService.NextRun = tickScheduler.NextRun
	display.Sources = controlService.Sources
	grpc_control.RegisterControlServer(grpcServer, controlService)

	// 2. Display server, reads the source list through the control service
	go func() {
		if err := display.Start(); err != nil {
			appLogger.Error("Display server failed: %v", err)
		}
	}()

	go func() {
		port := config.GrpcPort
		if port == 0 {
			port = 50051
		}
		addr := fmt.Sprintf("%s:%d", config.GrpcHost, port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			appLogger.Error("Failed to listen for gRPC on %s: %v", addr, err)
			return
		}

		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC server stopped: %v", err)
		}
	}()

	return grpcServer
}
