package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	defaultLogger *Logger
	loggerMutex   sync.RWMutex
)

// Logger 日志结构体
type Logger struct {
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	alertLogger *log.Logger
}

// LogLevel 日志级别类型
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// GetLogLevelFromString 将字符串转换为日志级别
func GetLogLevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return WARN // 默认级别
	}
}

// InitLogger 初始化日志系统
// path为空或为"console"时只输出到控制台；console为true时同时输出到控制台
func InitLogger(path, level string, console bool) {
	var output io.Writer

	if path == "console" || path == "" {
		output = os.Stdout
	} else {
		output = setupLogFileOutput(path)
		if console && output != os.Stdout {
			output = io.MultiWriter(os.Stdout, output)
		}
	}
	InitLoggerWithWriter(output, level)
}

// InitLoggerWithWriter 使用指定的输出初始化日志系统
func InitLoggerWithWriter(output io.Writer, level string) {
	logLevel := GetLogLevelFromString(level)

	// 创建不同级别的日志器
	flags := log.LstdFlags | log.Lshortfile

	l := &Logger{
		debugLogger: log.New(io.Discard, "DEBUG: ", flags),
		infoLogger:  log.New(io.Discard, "INFO: ", flags),
		warnLogger:  log.New(io.Discard, "WARN: ", flags),
		errorLogger: log.New(io.Discard, "ERROR: ", flags),
		// 告警不受日志级别过滤，外部通知程序依赖该前缀
		alertLogger: log.New(output, "ALERT: ", log.LstdFlags),
	}

	// 根据级别设置输出
	if logLevel <= DEBUG {
		l.debugLogger.SetOutput(output)
	}
	if logLevel <= INFO {
		l.infoLogger.SetOutput(output)
	}
	if logLevel <= WARN {
		l.warnLogger.SetOutput(output)
	}
	if logLevel <= ERROR {
		l.errorLogger.SetOutput(output)
	}

	loggerMutex.Lock()
	defaultLogger = l
	loggerMutex.Unlock()
}

// setupLogFileOutput 设置日志文件输出
func setupLogFileOutput(logPath string) io.Writer {
	// 确保日志目录存在
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "create log directory failed: %v\n", err)
		return os.Stdout
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// 在日志系统初始化失败时，暂时使用标准输出
		fmt.Fprintf(os.Stderr, "open log file failed: %v\n", err)
		return os.Stdout
	}

	return file
}

func current() *Logger {
	loggerMutex.RLock()
	defer loggerMutex.RUnlock()
	return defaultLogger
}

// Debugf 输出格式化调试日志
func Debugf(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.debugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Info 输出信息日志
func Info(v ...interface{}) {
	if l := current(); l != nil {
		l.infoLogger.Output(2, fmt.Sprintln(v...))
	}
}

// Infof 输出格式化信息日志
func Infof(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.infoLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Warnf 输出格式化警告日志
func Warnf(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.warnLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Error 输出错误日志
func Error(v ...interface{}) {
	if l := current(); l != nil {
		l.errorLogger.Output(2, fmt.Sprintln(v...))
	}
}

// Errorf 输出格式化错误日志
func Errorf(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.errorLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Alertf 输出关键告警，与普通日志行区分
func Alertf(format string, v ...interface{}) {
	if l := current(); l != nil {
		l.alertLogger.Output(2, fmt.Sprintf(format, v...))
		return
	}
	fmt.Fprintf(os.Stderr, "ALERT: "+format+"\n", v...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(v ...interface{}) {
	if l := current(); l != nil {
		l.errorLogger.Output(2, fmt.Sprintln(v...))
	} else {
		// 在日志系统未初始化时，使用标准错误输出
		fmt.Fprintln(os.Stderr, append([]interface{}{"FATAL:"}, v...)...)
	}
	os.Exit(1)
}
