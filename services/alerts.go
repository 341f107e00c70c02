package services

import (
	"strings"
	"sync"
	"time"

	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/models"

	"github.com/google/uuid"
)

// 内存中保留的告警条数
const maxAlertHistory = 100

/**
 * AlertCenter 关键组件告警中心
 * @description
 * - 告警写入ALERT日志流并计入监控指标
 * - 保留最近的告警供API查询
 * - 推送给订阅者，订阅者接收不及时则丢弃，不阻塞监控循环
 */
type AlertCenter struct {
	mutex       sync.RWMutex
	history     []models.CriticalAlert
	subscribers []chan<- models.CriticalAlert
}

func NewAlertCenter() *AlertCenter {
	return &AlertCenter{}
}

func (ac *AlertCenter) Raise(components []string) models.CriticalAlert {
	alert := models.CriticalAlert{
		ID:         uuid.NewString(),
		Time:       time.Now(),
		Components: append([]string(nil), components...),
	}
	logger.Alertf("CRITICAL ALERT [%s]: critical components failed: %s", alert.ID, strings.Join(components, ", "))
	criticalAlerts.Inc()

	ac.mutex.Lock()
	ac.history = append(ac.history, alert)
	if len(ac.history) > maxAlertHistory {
		ac.history = ac.history[len(ac.history)-maxAlertHistory:]
	}
	subscribers := make([]chan<- models.CriticalAlert, len(ac.subscribers))
	copy(subscribers, ac.subscribers)
	ac.mutex.Unlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- alert:
		default:
			logger.Debugf("Alert subscriber blocked, skipping alert %s", alert.ID)
		}
	}
	return alert
}

// Subscribe 返回接收告警的通道
func (ac *AlertCenter) Subscribe() <-chan models.CriticalAlert {
	ac.mutex.Lock()
	defer ac.mutex.Unlock()

	ch := make(chan models.CriticalAlert, 16)
	ac.subscribers = append(ac.subscribers, ch)
	return ch
}

// History 返回最近的告警，最新的在最后
func (ac *AlertCenter) History() []models.CriticalAlert {
	ac.mutex.RLock()
	defer ac.mutex.RUnlock()
	return append([]models.CriticalAlert(nil), ac.history...)
}
