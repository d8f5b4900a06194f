package gateway

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/tidwall/gjson"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/presence"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/session"
)

// signalHandler offer/answer/ice-candidate 중계.
// 받는 사람의 현재 연결로 원본 페이로드에 보낸 사람 정보만 추가해 전달한다
func signalHandler(event, bodyKey string) HandlerFunc {
	return func(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
		code, err := requireRoom(s, data)
		if err != nil {
			return s, nil, err
		}

		to := strings.TrimSpace(gjson.GetBytes(data, "toUserId").String())
		if to == "" {
			return s, nil, apperr.InvalidArgument("missing toUserId")
		}
		if !gjson.GetBytes(data, bodyKey).Exists() {
			return s, nil, apperr.InvalidArgument("missing " + bodyKey)
		}

		target, ok := reg.ConnectionFor(code, to)
		if !ok {
			// 상대가 없으면 조용히 버림 (재협상은 클라이언트 몫)
			log.Printf("[Signal] %s from %s to %s dropped: no live connection in room %s", event, s.UserID, to, code)
			return s, nil, nil
		}

		patched, err := withSender(data, s.UserID, s.Username)
		if err != nil {
			return s, nil, err
		}
		return s, []Effect{Emit{Target: Conn(target), Event: event, Payload: patched}}, nil
	}
}

// withSender fromUserId/fromUsername 추가
func withSender(data json.RawMessage, userID, username string) (json.RawMessage, error) {
	container, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, apperr.InvalidArgument("malformed signaling payload")
	}
	if _, err := container.SetP(userID, "fromUserId"); err != nil {
		return nil, apperr.InvalidArgument("malformed signaling payload")
	}
	if _, err := container.SetP(username, "fromUsername"); err != nil {
		return nil, apperr.InvalidArgument("malformed signaling payload")
	}
	return json.RawMessage(container.Bytes()), nil
}
