package subscriber

import (
	"context"

	"github.com/craftforge/backend/internal/eventbus"
	"k8s.io/klog/v2"
)

// RegisterBuildEventLogger 订阅构建进度事件并输出结构化日志
// UI 推送等其他订阅方可以用同样的方式挂接到总线上
func RegisterBuildEventLogger(bus *eventbus.BuildEventBus) (unsubscribe func()) {
	unsubStatus := bus.Subscribe(eventbus.BuildEventStatusChanged, logBuildEvent)
	unsubAttempt := bus.Subscribe(eventbus.BuildEventAttempt, logBuildEvent)
	unsubDone := bus.Subscribe(eventbus.BuildEventCompleted, logBuildEvent)
	return func() {
		unsubStatus()
		unsubAttempt()
		unsubDone()
	}
}

func logBuildEvent(ctx context.Context, event eventbus.BuildEvent) error {
	switch event.Type {
	case eventbus.BuildEventCompleted:
		klog.Infof("构建结束: run=%s, name=%s, status=%s, attempts=%d, %s",
			event.RunID, event.Name, event.Status, event.Attempt, event.Message)
	default:
		klog.V(6).Infof("构建进度: run=%s, name=%s, status=%s, attempt=%d",
			event.RunID, event.Name, event.Status, event.Attempt)
	}
	return nil
}
