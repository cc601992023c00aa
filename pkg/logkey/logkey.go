package logkey

// keys shared by every log line so traces can be grepped across handlers
const (
	TraceID   = "TRACE ID"
	ERROR     = "ERROR"
	UserID    = "UserID"
	ProductID = "ProductID"
	BasketID  = "BasketID"
	SessionID = "SessionID"
)
