package service

import (
	"encoding/json"

	"github.com/Zwubman/software-company-sub002/internal/domain"
)

func marshalMessageOut(m *domain.Message) ([]byte, error) {
	return json.Marshal(domain.NewMessageOut(m))
}

func marshalReplayDone(lastSequence int64) ([]byte, error) {
	return json.Marshal(&domain.ReplayDoneMessage{
		Type:         domain.MsgTypeReplayDone,
		LastSequence: lastSequence,
	})
}
