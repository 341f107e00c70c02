package fleet

import (
	"context"
	"fmt"

	"fleet-keeper/cmd/root"
	"fleet-keeper/internal/models"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart [component]",
	Short: "重启组件",
	Long: `重启指定的组件；不指定组件时停止整个集群，暂停后重新按依赖顺序启动。
守护进程未运行时在本进程中启动整个集群并进入监控循环`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return restartFleet()
		}
		return restartComponent(context.Background(), args[0])
	},
}

func restartFleet() error {
	if client := connectDaemon(fleetTimeout); client != nil {
		defer client.Close()
		resp, err := client.Post(apiPrefix+"/restart", nil)
		if err != nil {
			return err
		}
		var report models.StatusReport
		if err := resp.Decode(&report); err != nil {
			return fmt.Errorf("failed to restart fleet: %w", err)
		}
		printStatus(report)
		return nil
	}
	return runFleet(true)
}

func restartComponent(ctx context.Context, name string) error {
	if client := connectDaemon(componentTimeout); client != nil {
		defer client.Close()
		resp, err := client.Post(fmt.Sprintf("%s/components/%s/restart", apiPrefix, name), nil)
		if err != nil {
			return err
		}
		var status models.ComponentStatus
		if err := resp.Decode(&status); err != nil {
			return fmt.Errorf("failed to restart component: %w", err)
		}
		fmt.Printf("Component %s has been restarted\n", name)
		printComponent(status)
		return nil
	}

	o, err := newOrchestrator()
	if err != nil {
		return err
	}
	if err := o.RestartComponent(ctx, name); err != nil {
		return fmt.Errorf("failed to restart component: %w", err)
	}
	fmt.Printf("Component %s has been started locally\n", name)
	return nil
}

func init() {
	root.RootCmd.AddCommand(restartCmd)
}
