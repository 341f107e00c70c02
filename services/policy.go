package services

import (
	"sync"

	"fleet-keeper/internal/config"
	"fleet-keeper/internal/logger"
	"fleet-keeper/internal/models"
)

type Decision int

const (
	// 重启组件
	DecisionRestart Decision = iota
	// 重启次数耗尽，永久失败
	DecisionGiveUp
	// 不自动处理，只报告
	DecisionReport
)

func (d Decision) String() string {
	switch d {
	case DecisionRestart:
		return "restart"
	case DecisionGiveUp:
		return "give_up"
	default:
		return "report"
	}
}

/**
 * PolicyEngine 重启策略引擎
 * @property {int} maxRestarts - on_failure策略的重启上限
 * @property {map[string]bool} exhausted - 已经宣告永久失败的组件
 */
type PolicyEngine struct {
	maxRestarts int
	mutex       sync.Mutex
	exhausted   map[string]bool
}

func NewPolicyEngine(maxRestarts int) *PolicyEngine {
	if maxRestarts <= 0 {
		maxRestarts = config.DefaultMaxRestarts
	}
	return &PolicyEngine{
		maxRestarts: maxRestarts,
		exhausted:   make(map[string]bool),
	}
}

/**
 * Decide 根据策略决定如何处理不健康的组件
 * @param {models.ComponentSpec} spec - 组件定义
 * @param {int} restartCount - 当前重启次数
 * @returns {Decision} 处理方式
 * @description
 * - always: 总是重启
 * - on_failure: 重启次数小于上限时重启，否则永久失败，失败日志只输出一次
 * - manual: 只报告
 */
func (pe *PolicyEngine) Decide(spec models.ComponentSpec, restartCount int) Decision {
	switch spec.RestartPolicy {
	case models.RestartAlways:
		return DecisionRestart
	case models.RestartOnFailure:
		if restartCount < pe.maxRestarts {
			return DecisionRestart
		}
		pe.mutex.Lock()
		defer pe.mutex.Unlock()
		if !pe.exhausted[spec.Name] {
			pe.exhausted[spec.Name] = true
			logger.Errorf("Component [%s] permanently failed after %d restarts, manual intervention required",
				spec.Name, restartCount)
		}
		return DecisionGiveUp
	default:
		return DecisionReport
	}
}

func (pe *PolicyEngine) Exhausted(name string) bool {
	pe.mutex.Lock()
	defer pe.mutex.Unlock()
	return pe.exhausted[name]
}

// Reset 组件重新从头启动后清除永久失败标记
func (pe *PolicyEngine) Reset(name string) {
	pe.mutex.Lock()
	defer pe.mutex.Unlock()
	delete(pe.exhausted, name)
}
