package services

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fleet-keeper/internal/models"
)

const (
	DefaultLogLines = 100
	maxLogLines     = 10000
	maxLogLineSize  = 1024 * 1024
)

// LogService 读取组件的输出日志(<logDir>/<组件名>.log)
type LogService struct {
	dir string
}

func NewLogService(dir string) *LogService {
	return &LogService{dir: dir}
}

func (ls *LogService) Dir() string {
	return ls.dir
}

// LogFile 组件输出日志的路径
func (ls *LogService) LogFile(name string) string {
	return componentLogPath(ls.dir, name)
}

func componentLogPath(dir, name string) string {
	return filepath.Join(dir, name+".log")
}

/**
 * Read the last lines of a component log
 * @param {string} name - Component name
 * @param {int} lines - Number of lines, <=0 uses DefaultLogLines
 * @returns {models.ComponentLogs} Log file path and its last lines
 * @returns {error} Error if the log file does not exist or cannot be read
 * @example
 * logs, err := ls.Tail("ai_server", 50)
 * if err != nil {
 *     return err
 * }
 * fmt.Println(strings.Join(logs.Lines, "\n"))
 */
func (ls *LogService) Tail(name string, lines int) (models.ComponentLogs, error) {
	if lines <= 0 {
		lines = DefaultLogLines
	}
	lines = min(lines, maxLogLines)
	path := ls.LogFile(name)
	result := models.ComponentLogs{Name: name, File: path, Lines: []string{}}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return result, fmt.Errorf("日志文件不存在: %s", path)
		}
		return result, err
	}
	defer f.Close()

	// 环形缓冲只保留最后lines行
	ring := make([]string, lines)
	total := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLogLineSize)
	for scanner.Scan() {
		ring[total%lines] = scanner.Text()
		total++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("读取日志失败: %v", err)
	}

	count := min(total, lines)
	for i := total - count; i < total; i++ {
		result.Lines = append(result.Lines, ring[i%lines])
	}
	return result, nil
}

/**
 * List the log files in the log directory
 * @returns {[]models.LogFileInfo} Log files sorted by name
 * @returns {error} Error if the directory cannot be read
 */
func (ls *LogService) List() ([]models.LogFileInfo, error) {
	entries, err := os.ReadDir(ls.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.LogFileInfo{}, nil
		}
		return nil, fmt.Errorf("读取目录失败: %v", err)
	}

	files := []models.LogFileInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, models.LogFileInfo{
			Name:    strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			File:    filepath.Join(ls.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime().Format(time.RFC3339),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
