package orchestrator

// messageKey identifies one localisable user-facing message, independent
// of the ErrorCode that triggers it (a single code can render through
// different copy depending on block type).
type messageKey string

const (
	msgServerBusy     messageKey = "server_busy"
	msgRequestTimeout messageKey = "request_timeout"
	msgInputBlocked   messageKey = "input_blocked"
	msgOutputBlocked  messageKey = "output_blocked"
	msgUpstreamError  messageKey = "upstream_error"
)

// messageTable is keyed by language then message key; an unrecognised
// language falls back to "en" in localize.
var messageTable = map[string]map[messageKey]string{
	"en": {
		msgServerBusy:     "The server is busy right now. Please try again shortly.",
		msgRequestTimeout: "The request timed out while waiting for a model slot.",
		msgInputBlocked:   "Your message was blocked by content policy.",
		msgOutputBlocked:  "The model's response was blocked by content policy.",
		msgUpstreamError:  "The upstream model backend could not be reached.",
	},
	"zh": {
		msgServerBusy:     "服务器当前繁忙，请稍后重试。",
		msgRequestTimeout: "等待模型资源超时。",
		msgInputBlocked:   "您的消息被内容策略拦截。",
		msgOutputBlocked:  "模型的回复被内容策略拦截。",
		msgUpstreamError:  "无法连接到上游模型后端。",
	},
	"vi": {
		msgServerBusy:     "Máy chủ hiện đang bận. Vui lòng thử lại sau.",
		msgRequestTimeout: "Hết thời gian chờ một vị trí xử lý mô hình.",
		msgInputBlocked:   "Tin nhắn của bạn đã bị chặn bởi chính sách nội dung.",
		msgOutputBlocked:  "Phản hồi của mô hình đã bị chặn bởi chính sách nội dung.",
		msgUpstreamError:  "Không thể kết nối tới máy chủ mô hình phía sau.",
	},
	"ja": {
		msgServerBusy:     "サーバーが混み合っています。しばらくしてからもう一度お試しください。",
		msgRequestTimeout: "モデルの空き待ちでタイムアウトしました。",
		msgInputBlocked:   "あなたのメッセージはコンテンツポリシーによりブロックされました。",
		msgOutputBlocked:  "モデルの応答はコンテンツポリシーによりブロックされました。",
		msgUpstreamError:  "上流のモデルバックエンドに接続できませんでした。",
	},
	"ko": {
		msgServerBusy:     "서버가 현재 사용 중입니다. 잠시 후 다시 시도해 주세요.",
		msgRequestTimeout: "모델 슬롯을 기다리는 동안 시간이 초과되었습니다.",
		msgInputBlocked:   "메시지가 콘텐츠 정책에 의해 차단되었습니다.",
		msgOutputBlocked:  "모델의 응답이 콘텐츠 정책에 의해 차단되었습니다.",
		msgUpstreamError:  "업스트림 모델 백엔드에 연결할 수 없습니다.",
	},
	"ru": {
		msgServerBusy:     "Сервер сейчас занят. Повторите попытку позже.",
		msgRequestTimeout: "Истекло время ожидания слота модели.",
		msgInputBlocked:   "Ваше сообщение заблокировано политикой контента.",
		msgOutputBlocked:  "Ответ модели заблокирован политикой контента.",
		msgUpstreamError:  "Не удалось подключиться к серверу модели.",
	},
	"ar": {
		msgServerBusy:     "الخادم مشغول حاليًا. يرجى المحاولة مرة أخرى قريبًا.",
		msgRequestTimeout: "انتهت مهلة الانتظار للحصول على فتحة نموذج.",
		msgInputBlocked:   "تم حظر رسالتك بواسطة سياسة المحتوى.",
		msgOutputBlocked:  "تم حظر رد النموذج بواسطة سياسة المحتوى.",
		msgUpstreamError:  "تعذر الوصول إلى خلفية النموذج.",
	},
}

// localize returns the message for key in lang, falling back to English
// for any language (or key) not in the table.
func localize(lang string, key messageKey) string {
	if table, ok := messageTable[lang]; ok {
		if s, ok := table[key]; ok {
			return s
		}
	}
	return messageTable["en"][key]
}
