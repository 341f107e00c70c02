package fleet

import (
	"context"
	"fmt"

	"fleet-keeper/cmd/root"
	"fleet-keeper/internal/models"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start [component]",
	Short: "启动组件",
	Long: `启动指定的组件；不指定组件时按依赖顺序启动整个集群。
守护进程运行时由守护进程执行，否则在本进程中启动整个集群并进入监控循环，直到Ctrl+C`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return startFleet()
		}
		return startComponent(context.Background(), args[0])
	},
}

func startFleet() error {
	if client := connectDaemon(fleetTimeout); client != nil {
		defer client.Close()
		resp, err := client.Post(apiPrefix+"/start", nil)
		if err != nil {
			return err
		}
		var report models.StatusReport
		if err := resp.Decode(&report); err != nil {
			return fmt.Errorf("failed to start fleet: %w", err)
		}
		printStatus(report)
		return nil
	}
	return runFleet(false)
}

/**
 * Start component by name
 * @param {context.Context} ctx - Context for request cancellation and timeout
 * @param {string} name - Name of the component to start
 * @returns {error} Returns error if component start fails, nil on success
 * @description
 * - Sends the request to the daemon when it is running
 * - Otherwise starts the component in this process, its dependencies are
 *   not running here so only components without dependencies can start
 */
func startComponent(ctx context.Context, name string) error {
	if client := connectDaemon(componentTimeout); client != nil {
		defer client.Close()
		resp, err := client.Post(fmt.Sprintf("%s/components/%s/start", apiPrefix, name), nil)
		if err != nil {
			return err
		}
		var status models.ComponentStatus
		if err := resp.Decode(&status); err != nil {
			return fmt.Errorf("failed to start component: %w", err)
		}
		fmt.Printf("Component %s has been started via fleet-keeper daemon\n", name)
		printComponent(status)
		return nil
	}

	o, err := newOrchestrator()
	if err != nil {
		return err
	}
	if err := o.StartComponent(ctx, name); err != nil {
		return fmt.Errorf("failed to start component: %w", err)
	}
	status, _ := o.ComponentStatus(ctx, name)
	fmt.Printf("Component %s has been started locally\n", name)
	printComponent(status)
	return nil
}

func init() {
	root.RootCmd.AddCommand(startCmd)

	startCmd.Example = `  # start the whole fleet and keep monitoring it
  fleet-keeper start
  # start one component
  fleet-keeper start ai_server`
}
