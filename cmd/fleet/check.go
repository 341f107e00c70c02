package fleet

import (
	"errors"
	"fmt"
	"strings"

	"fleet-keeper/cmd/root"
	"fleet-keeper/internal/models"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "立即执行一次健康检查",
	Long:  "让守护进程立即执行一次监控周期：探测所有运行中的组件并按重启策略处理",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := connectDaemon(fleetTimeout)
		if client == nil {
			return errors.New("fleet-keeper daemon is not running, start it with 'fleet-keeper server'")
		}
		defer client.Close()

		resp, err := client.Post(apiPrefix+"/check", nil)
		if err != nil {
			return err
		}
		var result models.CheckResponse
		if err := resp.Decode(&result); err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		printStatus(result.Status)
		if len(result.Failed) > 0 {
			fmt.Printf("Failed components: %s\n", strings.Join(result.Failed, ", "))
		}
		return nil
	},
}

func init() {
	root.RootCmd.AddCommand(checkCmd)
}
