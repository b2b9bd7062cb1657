package activity

// Registered activity names. Workflows invoke activities by these names so
// the worker wiring and the workflow body cannot drift apart silently.
const (
	TypeReplyText             = "ReplyText"
	TypeReplyQuickReply       = "ReplyQuickReply"
	TypeReplyAudio            = "ReplyAudio"
	TypeControlAirConditioner = "ControlAirConditioner"
	TypeCheckInnerDoor        = "CheckInnerDoor"
	TypeCheckBedroomPresence  = "CheckBedroomPresence"
	TypeInvokeModel           = "InvokeModel"
	TypeClassifyRequest       = "ClassifyRequest"
)
