// Package chat keeps conversation lists and message threads in sync with
// the document store and sends messages to both participants.
package chat

const (
	errorMsgLogField  = "errorMsg"
	pathLogField      = "path"
	docIDLogField     = "docID"
	userIDLogField    = "userID"
	partnerIDLogField = "partnerID"
	messageIDLogField = "messageID"
	stepLogField      = "step"
)
