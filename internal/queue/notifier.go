package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hookah_delivery/internal/model"
	"hookah_delivery/internal/policy"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 事件名 -> 模板 key；SESSION_ENDING 按营业时间动态选择。
var eventTemplates = map[string]string{
	EventOrderCreated:    "order_created",
	EventOrderConfirmed:  "order_confirmed",
	EventOnTheWay:        "order_on_the_way",
	EventDelivered:       "order_delivered",
	EventSessionStarted:  "session_started",
	EventPickupRequested: "pickup_requested",
	EventOrderCompleted:  "order_completed",
	EventOrderCanceled:   "order_canceled",
	EventFreeExtension:   "free_extension_used",
	EventTimerAdjusted:   "timer_adjusted",

	EventRebowlRequested:  "rebowl_requested",
	EventRebowlInProgress: "rebowl_on_the_way",
	EventRebowlDone:       "rebowl_done",
	EventRebowlCanceled:   "rebowl_canceled",
}

var templates = map[string]map[string]string{
	"order_created": {
		"ru": "Заказ #{order} принят. Ждите подтверждения.",
		"en": "Order #{order} received. Waiting for confirmation.",
	},
	"order_confirmed": {
		"ru": "Заказ #{order} подтвержден.",
		"en": "Order #{order} confirmed.",
	},
	"order_on_the_way": {
		"ru": "Курьер уже в пути с заказом #{order}.",
		"en": "Courier is on the way with order #{order}.",
	},
	"order_delivered": {
		"ru": "Заказ #{order} доставлен.",
		"en": "Order #{order} delivered.",
	},
	"session_started": {
		"ru": "Сессия по заказу #{order} началась. Приятного отдыха!",
		"en": "Session for order #{order} has started. Enjoy!",
	},
	"session_ending_before_02": {
		"ru": "Сессия #{order} скоро закончится. Можно продлить на 1 час бесплатно или заказать новую чашу.",
		"en": "Session #{order} is ending soon. You can extend for 1 hour for free or order a new bowl.",
	},
	"session_ending_after_02": {
		"ru": "Сессия #{order} скоро закончится. Продление после 02:00 недоступно.",
		"en": "Session #{order} is ending soon. Extensions are unavailable after 02:00.",
	},
	"pickup_requested": {
		"ru": "Курьер скоро заберет кальян по заказу #{order}.",
		"en": "A courier will pick up order #{order} soon.",
	},
	"order_completed": {
		"ru": "Заказ #{order} завершен. Спасибо!",
		"en": "Order #{order} completed. Thank you!",
	},
	"order_canceled": {
		"ru": "Заказ #{order} отменен.",
		"en": "Order #{order} canceled.",
	},
	"free_extension_used": {
		"ru": "Сессия #{order} продлена на 1 час.",
		"en": "Session #{order} extended by 1 hour.",
	},
	"timer_adjusted": {
		"ru": "Время сессии #{order} изменено.",
		"en": "Session #{order} time was adjusted.",
	},
	"rebowl_requested": {
		"ru": "Запрос на новую чашу по заказу #{order} принят. Скоро будем!",
		"en": "New bowl request for order #{order} received. We'll be there soon!",
	},
	"rebowl_on_the_way": {
		"ru": "Выезжаем заменить чашу по заказу #{order}.",
		"en": "On the way to replace the bowl for order #{order}.",
	},
	"rebowl_done": {
		"ru": "Чаша заменена, сессия #{order} началась заново. Приятного отдыха!",
		"en": "Bowl replaced, session #{order} restarted. Enjoy!",
	},
	"rebowl_canceled": {
		"ru": "Запрос на новую чашу по заказу #{order} отменен.",
		"en": "New bowl request for order #{order} was canceled.",
	},
}

// LogNotifier 渲染模板、记录 notifications 表并写日志。
// 真正的聊天平台推送由宿主平台适配器完成，不在本服务内。
type LogNotifier struct {
	db       *gorm.DB
	hours    policy.Hours
	language string
	logger   *zap.Logger
}

func NewLogNotifier(db *gorm.DB, hours policy.Hours, language string, logger *zap.Logger) *LogNotifier {
	return &LogNotifier{db: db, hours: hours, language: language, logger: logger}
}

// TemplateFor 解析事件对应的模板 key，未知事件返回空串。
func TemplateFor(event string, hours policy.Hours, at time.Time) string {
	if event == EventSessionEnding {
		if hours.IsAfterHours(at) {
			return "session_ending_after_02"
		}
		return "session_ending_before_02"
	}
	return eventTemplates[event]
}

// Render 用短订单号填充模板。
func Render(key, lang, orderID string) string {
	t, ok := templates[key]
	if !ok {
		return ""
	}
	text, ok := t[lang]
	if !ok {
		text = t["ru"]
	}
	return strings.ReplaceAll(text, "{order}", ShortID(orderID))
}

// ShortID 订单号前 8 位。
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (n *LogNotifier) Notify(ctx context.Context, ev OrderEvent) error {
	key := TemplateFor(ev.Event, n.hours, ev.At)
	if key == "" {
		n.logger.Warn("no template for event", zap.String("event", ev.Event))
		return nil
	}
	text := Render(key, n.language, ev.OrderID)

	rec := &model.Notification{
		EventID:  ev.EventID,
		OrderID:  ev.OrderID,
		Identity: ev.Identity,
		Template: key,
		Text:     text,
	}
	if err := n.db.WithContext(ctx).Create(rec).Error; err != nil {
		// 幂等：重复消息导致 UNIQUE 冲突，直接当作成功
		if model.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("record notification: %w", err)
	}
	n.logger.Info("notification sent",
		zap.String("event", ev.Event),
		zap.String("order_id", ShortID(ev.OrderID)),
		zap.String("identity", ev.Identity),
		zap.String("template", key))
	return nil
}
