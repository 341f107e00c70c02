package utils

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// CommandArgs 启动命令模板中可以引用的变量
type CommandArgs struct {
	Name       string
	Port       int
	InstallDir string
	HealthPath string
}

// GetCommandLine 展开命令和参数中的模板变量，例如 "--port={{.Port}}"
func GetCommandLine(command string, args []string, data interface{}) (string, []string, error) {
	cmd, err := expand("command", command, data)
	if err != nil {
		return "", nil, err
	}

	var processedArgs []string
	for _, arg := range args {
		a, err := expand("arg", arg, data)
		if err != nil {
			return "", nil, err
		}
		processedArgs = append(processedArgs, strings.TrimSpace(a))
	}
	return cmd, processedArgs, nil
}

func expand(name, text string, data interface{}) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template '%s': %w", name, text, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template '%s': %w", name, text, err)
	}
	return buf.String(), nil
}
