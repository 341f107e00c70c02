package fleet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fleet-keeper/cmd/root"
	"fleet-keeper/internal/models"
	"fleet-keeper/services"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var logLines int

var logsCmd = &cobra.Command{
	Use:   "logs [component]",
	Short: "查看组件输出日志",
	Long:  "显示组件输出日志的最后若干行；不指定组件时列出所有日志文件",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return listLogs()
		}
		return showLogs(args[0])
	},
}

// 日志文件在磁盘上，守护进程未运行时直接读取
func localLogService() *services.LogService {
	return services.NewLogService(filepath.Join(root.Config.Deployment.InstallDir, "logs"))
}

func listLogs() error {
	var files []models.LogFileInfo
	if client := connectDaemon(componentTimeout); client != nil {
		defer client.Close()
		resp, err := client.Get(apiPrefix+"/logs", nil)
		if err != nil {
			return err
		}
		if err := resp.Decode(&files); err != nil {
			return err
		}
	} else {
		var err error
		if files, err = localLogService().List(); err != nil {
			return err
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"NAME", "SIZE", "MODIFIED", "FILE"})
	for _, f := range files {
		t.AppendRow(table.Row{f.Name, f.Size, f.ModTime, f.File})
	}
	t.Render()
	return nil
}

func showLogs(name string) error {
	var logs models.ComponentLogs
	if client := connectDaemon(componentTimeout); client != nil {
		defer client.Close()
		resp, err := client.Get(fmt.Sprintf("%s/components/%s/logs", apiPrefix, name),
			map[string]interface{}{"lines": logLines})
		if err != nil {
			return err
		}
		if err := resp.Decode(&logs); err != nil {
			return err
		}
	} else {
		var err error
		if logs, err = localLogService().Tail(name, logLines); err != nil {
			return err
		}
	}
	fmt.Printf("==> %s <==\n", logs.File)
	if len(logs.Lines) > 0 {
		fmt.Println(strings.Join(logs.Lines, "\n"))
	}
	return nil
}

func init() {
	root.RootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVarP(&logLines, "lines", "n", services.DefaultLogLines, "显示的行数")
}
