package fleet

import (
	"fmt"
	"time"

	"fleet-keeper/cmd/root"
	"fleet-keeper/internal/config"
	"fleet-keeper/internal/models"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "监控集群",
	Long: `守护进程运行时，按间隔刷新守护进程报告的集群状态；
否则在本进程中启动整个集群并进入监控循环，直到Ctrl+C`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := connectDaemon(componentTimeout)
		if client == nil {
			return runFleet(false)
		}
		defer client.Close()

		interval := watchInterval
		if interval <= 0 {
			interval = root.Config.Monitor.Interval
		}
		if interval <= 0 {
			interval = config.DefaultInterval
		}
		ctx, stop := signalContext()
		defer stop()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			resp, err := client.Get(apiPrefix+"/status", nil)
			if err != nil {
				return err
			}
			var report models.StatusReport
			if err := resp.Decode(&report); err != nil {
				return err
			}
			fmt.Printf("\n%s\n", report.Timestamp.Format(time.RFC3339))
			printStatus(report)

			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	root.RootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 0, "刷新间隔，默认使用monitor.interval")
}
