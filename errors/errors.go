package errors

import "fmt"

var (
	ErrValidation           = fmt.Errorf("attachment rejected by validation")
	ErrUpload               = fmt.Errorf("attachment upload failed")
	ErrPersist              = fmt.Errorf("message persistence failed")
	ErrReadReceipt          = fmt.Errorf("read receipt update failed")
	ErrSubscription         = fmt.Errorf("event subscription failed")
	ErrDelete               = fmt.Errorf("message deletion failed")
	ErrNoActiveConversation = fmt.Errorf("no active conversation")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrConversationNotFound = fmt.Errorf("conversation not found")
	ErrWorkerPanic          = fmt.Errorf("worker panic")
)
