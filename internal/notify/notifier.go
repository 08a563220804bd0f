package notify

import (
	"github.com/sirupsen/logrus"
)

// LogNotifier 把通知写进日志的通知器
// 邮件/IM 等真实通道由部署方替换实现,核心流程不感知
type LogNotifier struct {
	log *logrus.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	if log == nil {
		log = logrus.New()
	}
	return &LogNotifier{log: log}
}

// Notify 记录一条通知
func (n *LogNotifier) Notify(recipient string, kind string, payload map[string]interface{}) {
	n.log.WithFields(logrus.Fields{
		"recipient": recipient,
		"kind":      kind,
		"payload":   payload,
	}).Info("notification dispatched")
}
