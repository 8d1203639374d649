package backend

import (
	"errors"
	"fmt"
	"strings"
)

const (
	UsersCollection          = "users"
	MessagesCollection       = "messages"
	RecentMessagesCollection = "recent_messages"
	recentMessagesSub        = "messages"

	OrderByTimestamp = "timestamp"
)

var ErrInvalidID = errors.New("invalid document id")

// ValidID checks that id is a single path segment. Path helpers do not
// clean their input, so ids from clients must pass this first.
func ValidID(id string) error {
	if id == "" || id == "." || id == ".." || strings.Contains(id, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func join(segments ...string) string {
	return strings.Join(segments, "/")
}

func UserPath(uid string) string {
	return join(UsersCollection, uid)
}

// MessagesPath is the collection holding uid's copy of the thread with partnerUID.
func MessagesPath(uid, partnerUID string) string {
	return join(MessagesCollection, uid, partnerUID)
}

func MessagePath(uid, partnerUID, messageID string) string {
	return join(MessagesCollection, uid, partnerUID, messageID)
}

// RecentMessagesPath is the collection of uid's conversation summaries.
func RecentMessagesPath(uid string) string {
	return join(RecentMessagesCollection, uid, recentMessagesSub)
}

func RecentMessagePath(uid, partnerUID string) string {
	return join(RecentMessagesCollection, uid, recentMessagesSub, partnerUID)
}

// Split separates a document path into its collection path and document id.
func Split(docPath string) (collection, id string) {
	i := strings.LastIndex(docPath, "/")
	if i < 0 {
		return "", docPath
	}
	return docPath[:i], docPath[i+1:]
}
