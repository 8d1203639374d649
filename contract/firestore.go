package contract

import "time"

// Firestore field names shared with the mobile clients.
const (
	FieldUID             = "uid"
	FieldEmail           = "email"
	FieldProfileImageURL = "profileImageUrl"
	FieldFromID          = "fromId"
	FieldToID            = "toId"
	FieldText            = "text"
	FieldTimestamp       = "timestamp"
)

// User is stored at users/{uid}.
type User struct {
	UID             string `firestore:"uid" json:"uid"`
	Email           string `firestore:"email" json:"email"`
	ProfileImageURL string `firestore:"profileImageUrl" json:"profile_image_url"`
}

// Message is stored at messages/{uid}/{partnerUid}/{messageId}, once per participant.
type Message struct {
	ID        string    `firestore:"-" json:"id"`
	FromID    string    `firestore:"fromId" json:"from_id"`
	ToID      string    `firestore:"toId" json:"to_id"`
	Text      string    `firestore:"text" json:"text"`
	Timestamp time.Time `firestore:"timestamp" json:"timestamp"`
}

// RecentMessage is the conversation summary stored at
// recent_messages/{uid}/messages/{partnerUid}. The document id is the
// partner's uid, ProfileImageURL and Email describe the partner.
type RecentMessage struct {
	ConversationID  string    `firestore:"-" json:"conversation_id"`
	FromID          string    `firestore:"fromId" json:"from_id"`
	ToID            string    `firestore:"toId" json:"to_id"`
	Text            string    `firestore:"text" json:"text"`
	Timestamp       time.Time `firestore:"timestamp" json:"timestamp"`
	ProfileImageURL string    `firestore:"profileImageUrl" json:"profile_image_url"`
	Email           string    `firestore:"email" json:"email"`
}
