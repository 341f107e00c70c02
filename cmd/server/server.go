package server

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

	"fleet-keeper/cmd/root"
	"fleet-keeper/controllers"
	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/middleware"
	"fleet-keeper/internal/resolver"
	"fleet-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const serverShutdownTimeout = 10 * time.Second

var serverCmd = &cobra.Command{
	Use:         "server",
	Short:       "以守护进程方式运行集群并提供HTTP API",
	Annotations: map[string]string{"mode": root.ModeDaemon},
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer(context.Background())
	},
}

/**
 * Run the fleet as a daemon
 * @param {context.Context} ctx - Parent context, SIGINT/SIGTERM also stop the daemon
 * @returns {error} Listener, scheduling or serve error
 * @description
 * - Binds the API address before starting any component
 * - A scheduling error is fatal, a startup error is logged and the
 *   components that did start stay supervised
 * - The monitor loop and the HTTP server run in one errgroup, whichever
 *   ends first stops the other, the monitor shuts the fleet down on exit
 */
func startServer(ctx context.Context) error {
	cfg := root.Config
	gin.SetMode(cfg.Server.Mode)

	o, err := services.NewOrchestrator(cfg)
	if err != nil {
		return err
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.MetricsMiddleware())
	controllers.NewAPIController(o).RegisterRoutes(router)
	controllers.NewComponentController(o).RegisterRoutes(router)
	controllers.NewLogController(o).RegisterRoutes(router)

	listeners, err := CreateListeners([]ListenAddr{{Network: "tcp", Address: cfg.Server.Address}})
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := o.StartAll(ctx); err != nil {
		var schedErr *resolver.SchedulingError
		if errors.As(err, &schedErr) {
			closeListeners(listeners)
			return err
		}
		logger.Errorf("Fleet startup failed: %v", err)
		if ctx.Err() != nil {
			closeListeners(listeners)
			return o.Shutdown(context.WithoutCancel(ctx))
		}
	}

	srv := &http.Server{Handler: router}
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			logger.Infof("API server listening on %s://%s", l.Addr().Network(), l.Addr().String())
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		// 监控循环结束后服务也随之退出
		defer stop()
		return o.Monitor(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		logger.Info("Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Errorf("Daemon stopped with error: %v", err)
		return err
	}
	logger.Info("Daemon stopped")
	return nil
}

func closeListeners(listeners []net.Listener) {
	for _, l := range listeners {
		l.Close()
	}
}

func init() {
	root.RootCmd.AddCommand(serverCmd)

	serverCmd.Example = `  fleet-keeper server --config /etc/fleet-keeper/fleet.yaml`
}
