package fleet

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleet-keeper/cmd/root"
	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/rpc"
	"fleet-keeper/services"
)

const (
	apiPrefix = "/fleet/api/v1"
	// 单组件操作的请求超时
	componentTimeout = 2 * time.Minute
	// 整个集群的启动/重启可能依次等待多个启动延迟
	fleetTimeout = 30 * time.Minute
)

/**
 * Connect to the running fleet-keeper daemon
 * @param {time.Duration} timeout - Timeout of the requests sent through the returned client
 * @returns {rpc.HTTPClient} Client connected to the daemon, nil if the daemon is not running
 * @description
 * - Probes /healthz with a short timeout first, so a slow operation is never
 *   mistaken for an absent daemon and executed a second time locally
 */
func connectDaemon(timeout time.Duration) rpc.HTTPClient {
	probeCfg := rpc.DefaultHTTPConfig(root.Config.Server.Address)
	probeCfg.Timeout = 2 * time.Second
	probe := rpc.NewHTTPClient(probeCfg)
	defer probe.Close()

	resp, err := probe.Get("/healthz", nil)
	if err != nil || resp.Decode(nil) != nil {
		logger.Debugf("Daemon is not reachable at %s: %v", probeCfg.Address, err)
		return nil
	}

	cfg := rpc.DefaultHTTPConfig(root.Config.Server.Address)
	cfg.Timeout = timeout
	return rpc.NewHTTPClient(cfg)
}

func newOrchestrator() (*services.Orchestrator, error) {
	return services.NewOrchestrator(root.Config)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

/**
 * Run the whole fleet in the current process until interrupted
 * @param {bool} restart - Restart the fleet instead of starting it
 * @returns {error} Startup error, or the shutdown error after the monitor loop ends
 * @description
 * - Enters the monitor loop only when every component started
 * - On failure the already started components are left running
 * - Interrupting during startup stops what was started so far
 */
func runFleet(restart bool) error {
	o, err := newOrchestrator()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	if restart {
		err = o.RestartAll(ctx)
	} else {
		err = o.StartAll(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("Startup interrupted, shutting down")
			return o.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	}
	printStatus(o.Status(ctx))
	fmt.Println("\nMonitoring started. Press Ctrl+C to stop.")
	if err := o.Monitor(ctx); err != nil {
		return err
	}
	fmt.Println("Fleet shutdown complete")
	return nil
}
