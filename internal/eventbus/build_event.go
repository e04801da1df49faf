package eventbus

import (
	"context"
	"time"
)

type BuildEventType string

const (
	BuildEventStatusChanged BuildEventType = "StatusChanged"
	BuildEventAttempt       BuildEventType = "Attempt"
	BuildEventCompleted     BuildEventType = "Completed"
)

// BuildEvent 构建流水线进度事件，供 UI 推送等订阅方消费
type BuildEvent struct {
	Type      BuildEventType
	RunID     string // 本次流水线运行的 UUID
	ProjectID uint
	Name      string
	Status    string
	Attempt   int
	Message   string
	Time      time.Time
}

type BuildEventHandler = Handler[BuildEvent]
type BuildEventBus = Bus[BuildEventType, BuildEvent]

func NewBuildEventBus() *BuildEventBus {
	return NewBus[BuildEventType, BuildEvent]()
}

// PublishStatus 发布状态变更事件的便捷方法
func PublishStatus(ctx context.Context, bus *BuildEventBus, event BuildEvent) error {
	if bus == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	return bus.Publish(ctx, event.Type, event)
}
