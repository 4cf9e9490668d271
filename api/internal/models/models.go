package models // 持久化模型包

import ( // 依赖导入
	"time" // 时间类型

	"github.com/google/uuid" // UUID 类型
)

type OutboxEvent struct { // 待投递事件
	EventID       uuid.UUID  // 事件 ID
	AggregateType string     // 聚合类型
	AggregateID   string     // 聚合 ID (工单 ID)
	EventType     string     // 事件类型
	Topic         string     // Kafka 主题
	Payload       []byte     // 事件信封 JSON
	Status        string     // 投递状态
	Attempts      int        // 已尝试次数
	NextRetryAt   *time.Time // 下次重试时间
	LockedAt      *time.Time // 锁定时间
	LockedBy      *string    // 锁定者
	LastError     *string    // 最近错误
	CreatedAt     time.Time  // 创建时间
	UpdatedAt     time.Time  // 更新时间
	PublishedAt   *time.Time // 投递时间
}
