package fleet

import (
	"fmt"

	"fleet-keeper/cmd/root"
	"fleet-keeper/internal/models"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop [component]",
	Short: "停止组件",
	Long:  "停止指定的组件；不指定组件时按启动顺序的逆序停止整个集群",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := connectDaemon(fleetTimeout)
		if client == nil {
			// 只有守护进程持有运行中的组件
			fmt.Println("fleet-keeper daemon is not running, no component is supervised")
			return nil
		}
		defer client.Close()

		if len(args) == 0 {
			resp, err := client.Post(apiPrefix+"/stop", nil)
			if err != nil {
				return err
			}
			var report models.StatusReport
			if err := resp.Decode(&report); err != nil {
				return fmt.Errorf("failed to stop fleet: %w", err)
			}
			printStatus(report)
			return nil
		}

		resp, err := client.Post(fmt.Sprintf("%s/components/%s/stop", apiPrefix, args[0]), nil)
		if err != nil {
			return err
		}
		if err := resp.Decode(nil); err != nil {
			return fmt.Errorf("failed to stop component: %w", err)
		}
		fmt.Printf("Component %s has been stopped\n", args[0])
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(stopCmd)

	stopCmd.Example = `  fleet-keeper stop ai_server`
}
