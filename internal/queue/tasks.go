package queue

import (
	"encoding/json"
	"fmt"

	"github.com/storefront-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderTimeoutCancel 超时取消任务
	TaskOrderTimeoutCancel = constants.TaskOrderTimeoutCancel
	// TaskOrderPaid 支付完成通知任务
	TaskOrderPaid = constants.TaskOrderPaid
)

// OrderTimeoutCancelPayload 超时取消任务载荷
type OrderTimeoutCancelPayload struct {
	OrderID uint `json:"order_id"`
}

// OrderPaidPayload 支付完成任务载荷
type OrderPaidPayload struct {
	OrderID uint   `json:"order_id"`
	UserID  uint   `json:"user_id"`
	Source  string `json:"source"` // api / webhook
}

// NewOrderTimeoutCancelTask 创建超时取消任务
func NewOrderTimeoutCancelTask(payload OrderTimeoutCancelPayload) (*asynq.Task, error) {
	return newJSONTask(TaskOrderTimeoutCancel, payload)
}

// NewOrderPaidTask 创建支付完成任务
func NewOrderPaidTask(payload OrderPaidPayload) (*asynq.Task, error) {
	return newJSONTask(TaskOrderPaid, payload)
}

// DecodePayload 解析任务载荷
func DecodePayload(task *asynq.Task, dest interface{}) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}
	return json.Unmarshal(task.Payload(), dest)
}

func newJSONTask(typename string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, body), nil
}
