package gateway

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/model"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/presence"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/session"
)

// HandlerFunc 이벤트 하나를 처리하는 순수 함수.
// 레지스트리만 동기적으로 변경하고 나머지 I/O는 Effect로 기술한다
type HandlerFunc func(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error)

// handlers 클라이언트 이벤트 디스패치 테이블
var handlers = map[string]HandlerFunc{
	EventJoinRoom:    handleJoinRoom,
	EventSendMessage: handleSendMessage,
	EventLeaveRoom:   handleLeaveRoom,

	EventToggleVideo:    toggleHandler(presence.FieldVideo, "videoEnabled"),
	EventToggleVideoAlt: toggleHandler(presence.FieldVideo, "videoEnabled"),
	EventToggleAudio:    toggleHandler(presence.FieldAudio, "audioEnabled"),
	EventToggleAudioAlt: toggleHandler(presence.FieldAudio, "audioEnabled"),
	EventScreenShare:    toggleHandler(presence.FieldScreenShare, "isSharing"),
	EventScreenShareAlt: toggleHandler(presence.FieldScreenShare, "isSharing"),

	EventWhiteboardDraw:  handleWhiteboardDraw,
	EventWhiteboardClear: handleWhiteboardClear,
	EventWhiteboardUndo:  whiteboardIndexHandler(EventWhiteboardUndo),
	EventWhiteboardRedo:  whiteboardIndexHandler(EventWhiteboardRedo),

	EventVideoOffer:        signalHandler(EventVideoOffer, "offer"),
	EventVideoAnswer:       signalHandler(EventVideoAnswer, "answer"),
	EventVideoICECandidate: signalHandler(EventVideoICECandidate, "candidate"),

	EventFileUploaded: handleFileUploaded,
	EventFileDeleted:  handleFileDeleted,

	EventPing: handlePing,
}

// Dispatch 이벤트 이름으로 핸들러 실행
func Dispatch(reg *presence.Registry, s session.Session, event string, data json.RawMessage) (session.Session, []Effect, error) {
	h, ok := handlers[event]
	if !ok {
		return s, nil, apperr.InvalidArgument("unknown event " + event)
	}
	return h(reg, s, data)
}

// Events 등록된 이벤트 이름 목록
func Events() []string {
	names := make([]string, 0, len(handlers))
	for name := range handlers {
		names = append(names, name)
	}
	return names
}

func systemMessage(roomCode, text string) model.ChatMessage {
	return model.ChatMessage{
		RoomCode: roomCode,
		Author:   model.SystemAuthor,
		UserID:   model.SystemUserID,
		Text:     text,
		Kind:     model.MessageKindSystem,
	}
}

// requireRoom roomCode 추출 + 현재 세션이 그 방에 있는지 확인
func requireRoom(s session.Session, data json.RawMessage) (string, error) {
	code, err := roomCodeOf(data)
	if err != nil {
		return "", err
	}
	if !s.InRoom(code) {
		return "", apperr.Forbidden("not in room " + code)
	}
	return code, nil
}

func handleJoinRoom(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
	code, err := roomCodeOf(data)
	if err != nil {
		return s, nil, err
	}

	res := reg.Join(code, presence.Participant{
		UserID:       s.UserID,
		Username:     s.Username,
		ConnectionID: s.ConnID,
	})
	s = s.Join(code)

	effects := []Effect{CancelPurge{Room: code, UserID: s.UserID}}
	if res.ReplacedConn != "" && res.ReplacedConn != s.ConnID {
		effects = append(effects, Evict{Room: code, ConnID: res.ReplacedConn})
	}
	if !res.Reconnected {
		effects = append(effects, Persist{
			Message: systemMessage(code, s.Username+" joined the room"),
			Target:  RoomExcept(code, s.ConnID),
		})
	}
	effects = append(effects,
		Emit{Target: Room(code), Event: EventRoomMembers, Payload: res.Members},
		SyncPresence{Room: code},
	)
	return s, effects, nil
}

func handleSendMessage(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
	code, err := roomCodeOf(data)
	if err != nil {
		return s, nil, err
	}

	text := strings.TrimSpace(gjson.GetBytes(data, "text").String())
	if text == "" {
		return s, nil, apperr.InvalidArgument("empty message")
	}
	if utf8.RuneCountInString(text) > model.MaxMessageLength {
		text = string([]rune(text)[:model.MaxMessageLength])
	}

	if !s.InRoom(code) {
		return s, nil, apperr.Forbidden("not in room " + code)
	}

	msg := model.ChatMessage{
		RoomCode: code,
		Author:   s.Username,
		UserID:   s.UserID,
		Text:     text,
		Kind:     model.MessageKindUser,
	}
	return s, []Effect{Persist{Message: msg, Target: Room(code)}}, nil
}

func handleLeaveRoom(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
	code, err := roomCodeOf(data)
	if err != nil {
		return s, nil, err
	}

	// 새 연결에 밀려난 연결은 항목을 건드리지 않음
	if m, found := reg.Member(code, s.UserID); found && m.Online && m.ConnectionID != s.ConnID {
		return s.Leave(code), nil, nil
	}

	removed, ok := reg.Leave(code, s.UserID)
	s = s.Leave(code)

	effects := []Effect{CancelPurge{Room: code, UserID: s.UserID}}
	if !ok {
		return s, effects, nil
	}

	effects = append(effects, Persist{
		Message: systemMessage(code, removed.Username+" left the room"),
		Target:  Room(code),
	})
	if members := reg.ListRoom(code); len(members) > 0 {
		effects = append(effects,
			Emit{Target: Room(code), Event: EventRoomMembers, Payload: members},
			Emit{Target: Room(code), Event: EventUserLeft, Payload: UserLeftPayload{UserID: removed.UserID, Username: removed.Username}},
		)
	}
	effects = append(effects, SyncPresence{Room: code})
	return s, effects, nil
}

// toggleHandler flag 또는 클라이언트별 별칭 키로 상태 플래그 변경
func toggleHandler(field, altKey string) HandlerFunc {
	return func(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
		code, err := requireRoom(s, data)
		if err != nil {
			return s, nil, err
		}

		value := gjson.GetBytes(data, "flag")
		if !value.Exists() {
			value = gjson.GetBytes(data, altKey)
		}
		if !value.Exists() {
			return s, nil, apperr.InvalidArgument("missing flag for " + field)
		}

		if !reg.SetStatus(code, s.UserID, field, value.Bool()) {
			return s, nil, nil
		}
		return s, []Effect{
			Emit{Target: Room(code), Event: EventRoomMembers, Payload: reg.ListRoom(code)},
			SyncPresence{Room: code},
		}, nil
	}
}

func handlePing(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
	return s, []Effect{Emit{
		Target:  Conn(s.ConnID),
		Event:   EventPong,
		Payload: map[string]int64{"timestamp": time.Now().UnixMilli()},
	}}, nil
}

// HandleDisconnect 전송 계층 끊김 처리. 참가자는 오프라인으로 남고 유예 후 제거 예약
func HandleDisconnect(reg *presence.Registry, s session.Session) (session.Session, []Effect) {
	affected := reg.MarkDisconnected(s.ConnID)
	s = s.Close()

	var effects []Effect
	for _, a := range affected {
		p := a.Participant
		effects = append(effects,
			Persist{Message: systemMessage(a.Room, p.Username+" disconnected"), Target: Room(a.Room)},
			Emit{Target: Room(a.Room), Event: EventRoomMembers, Payload: reg.ListRoom(a.Room)},
			Emit{Target: Room(a.Room), Event: EventUserLeft, Payload: UserLeftPayload{UserID: p.UserID, Username: p.Username}},
			SchedulePurge{Room: a.Room, UserID: p.UserID},
			SyncPresence{Room: a.Room},
		)
	}
	return s, effects
}

// HandlePurge 유예 시간 만료 처리. 여전히 오프라인이면 제거하고 퇴장 알림
func HandlePurge(reg *presence.Registry, roomCode, userID string) []Effect {
	removed, ok := reg.PurgeStale(roomCode, userID)
	if !ok {
		return nil
	}
	return []Effect{
		Persist{Message: systemMessage(roomCode, removed.Username+" left the room"), Target: Room(roomCode)},
		Emit{Target: Room(roomCode), Event: EventRoomMembers, Payload: reg.ListRoom(roomCode)},
		SyncPresence{Room: roomCode},
	}
}
