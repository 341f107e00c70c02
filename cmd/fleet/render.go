package fleet

import (
	"fmt"
	"os"
	"strings"

	"fleet-keeper/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func stateText(state models.ComponentState) string {
	switch state {
	case models.StateHealthy:
		return text.FgGreen.Sprint(state)
	case models.StateUnhealthy:
		return text.FgYellow.Sprint(state)
	case models.StateStopped:
		return text.FgRed.Sprint(state)
	default:
		return text.FgHiBlack.Sprint(state)
	}
}

func dashIfZero(v int) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", v)
}

/**
 * Print status report as a table grouped by category
 * @param {models.StatusReport} report - Fleet status report
 * @description
 * - Categories keep the order of their first component in the registry
 * - Components without category are listed under "-"
 */
func printStatus(report models.StatusReport) {
	groups := make(map[models.Category][]models.ComponentStatus)
	var categories []models.Category
	for _, cs := range report.Components {
		if _, ok := groups[cs.Category]; !ok {
			categories = append(categories, cs.Category)
		}
		groups[cs.Category] = append(groups[cs.Category], cs)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Fleet status (%s)", report.Deployment)
	t.AppendHeader(table.Row{"CATEGORY", "NAME", "CRITICAL", "STATE", "PID", "PORT", "UPTIME", "RESTARTS", "DEPENDS ON"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})
	for _, category := range categories {
		label := string(category)
		if label == "" {
			label = "-"
		}
		for _, cs := range groups[category] {
			critical := ""
			if cs.Critical {
				critical = text.FgHiRed.Sprint("yes")
			}
			t.AppendRow(table.Row{
				label, cs.Name, critical, stateText(cs.State), dashIfZero(cs.Pid), dashIfZero(cs.Port),
				cs.Uptime, cs.RestartCount, strings.Join(cs.DependsOn, ", "),
			})
		}
		t.AppendSeparator()
	}
	t.Render()

	s := report.Summary
	fmt.Printf("Total: %d  Running: %d  Healthy: %d  Critical running: %d/%d\n",
		s.Total, s.Running, s.Healthy, s.CriticalRunning, s.CriticalTotal)
}

// printComponent 打印单个组件的详细信息
func printComponent(cs models.ComponentStatus) {
	fmt.Printf("=== Component '%s' ===\n", cs.Name)
	fmt.Printf("State: %s\n", stateText(cs.State))
	if cs.Category != "" {
		fmt.Printf("Category: %s\n", cs.Category)
	}
	fmt.Printf("Critical: %t\n", cs.Critical)
	if len(cs.DependsOn) > 0 {
		fmt.Printf("Depends on: %s\n", strings.Join(cs.DependsOn, ", "))
	}
	if len(cs.Dependents) > 0 {
		fmt.Printf("Required by: %s\n", strings.Join(cs.Dependents, ", "))
	}
	if cs.Pid > 0 {
		fmt.Printf("PID: %d\n", cs.Pid)
		fmt.Printf("Uptime: %s\n", cs.Uptime)
	}
	if cs.Port > 0 {
		fmt.Printf("Port: %d\n", cs.Port)
	}
	fmt.Printf("Restarts: %d\n", cs.RestartCount)
	if cs.LastExit != "" {
		fmt.Printf("Last exit: %s\n", cs.LastExit)
	}
}
