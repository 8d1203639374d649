package chat

import (
	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/contract"
)

func decodeMessage(c backend.Change) (backend.ChangeEvent[contract.Message], error) {
	ev, err := backend.Decode[contract.Message](c)
	if err != nil {
		return ev, err
	}
	ev.Payload.ID = ev.ID
	return ev, nil
}

// the summary document id is the partner's uid
func decodeRecentMessage(c backend.Change) (backend.ChangeEvent[contract.RecentMessage], error) {
	ev, err := backend.Decode[contract.RecentMessage](c)
	if err != nil {
		return ev, err
	}
	if ev.Payload.ConversationID == "" {
		ev.Payload.ConversationID = ev.ID
	}
	return ev, nil
}
