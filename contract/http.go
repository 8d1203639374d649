package contract

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInResponse struct {
	UID     string `json:"uid"`
	IDToken string `json:"id_token"`
}

type CreateAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// ProfileImage is optional raw image data (base64 in JSON).
	ProfileImage []byte `json:"profile_image,omitempty"`
}

type CreateAccountResponse struct {
	UID    string `json:"uid"`
	Status string `json:"status"`
}

type SendRequest struct {
	PartnerID string `json:"partner_id"`
	Text      string `json:"text"`
}

type SendStep struct {
	Step   string `json:"step"`
	Path   string `json:"path"`
	OK     bool   `json:"ok"`
	Status string `json:"status,omitempty"`
}

type SendResponse struct {
	Message Message    `json:"message"`
	Steps   []SendStep `json:"steps"`
	Status  string     `json:"status"`
}

// RecentMessagesEvent is one SSE frame of the conversation list stream.
type RecentMessagesEvent struct {
	Conversations []ConversationView `json:"conversations,omitempty"`
	Status        string             `json:"status,omitempty"`
}

type ConversationView struct {
	RecentMessage
	PreviewHTML string `json:"preview_html"`
}

// ChatLogEvent is one SSE frame of the message thread stream.
type ChatLogEvent struct {
	Messages []Message `json:"messages,omitempty"`
	Revision uint64    `json:"revision"`
	Status   string    `json:"status,omitempty"`
}
