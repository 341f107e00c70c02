package fleet

import (
	"context"
	"fmt"

	"fleet-keeper/cmd/root"
	"fleet-keeper/internal/models"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [component]",
	Short: "查看组件状态",
	Long:  "查看整个集群的运行状态，如果指定了组件名称，则只显示该组件的详细信息",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(context.Background(), args)
	},
}

/**
 * Show fleet or component status
 * @param {context.Context} ctx - Context for request cancellation and timeout
 * @param {[]string} args - Command line arguments, optionally containing component name
 * @returns {error} Returns error if the component is unknown or the daemon fails
 * @description
 * - Queries the daemon when it is running
 * - Otherwise lists the registry, every component is reported not_running
 */
func showStatus(ctx context.Context, args []string) error {
	if client := connectDaemon(componentTimeout); client != nil {
		defer client.Close()
		if len(args) == 0 {
			resp, err := client.Get(apiPrefix+"/status", nil)
			if err != nil {
				return err
			}
			var report models.StatusReport
			if err := resp.Decode(&report); err != nil {
				return err
			}
			printStatus(report)
			return nil
		}
		resp, err := client.Get(fmt.Sprintf("%s/components/%s", apiPrefix, args[0]), nil)
		if err != nil {
			return err
		}
		var status models.ComponentStatus
		if err := resp.Decode(&status); err != nil {
			return err
		}
		printComponent(status)
		return nil
	}

	o, err := newOrchestrator()
	if err != nil {
		return err
	}
	fmt.Println("fleet-keeper daemon is not running")
	if len(args) == 0 {
		printStatus(o.Status(ctx))
		return nil
	}
	status, err := o.ComponentStatus(ctx, args[0])
	if err != nil {
		return err
	}
	printComponent(status)
	return nil
}

func init() {
	root.RootCmd.AddCommand(statusCmd)
}
