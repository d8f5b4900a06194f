package gateway

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/model"
)

// 클라이언트 → 서버 이벤트
const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
	EventLeaveRoom   = "leave_room"

	EventToggleVideo    = "toggle_video"
	EventToggleAudio    = "toggle_audio"
	EventScreenShare    = "screen_share"
	EventToggleVideoAlt = "toggle-video"
	EventToggleAudioAlt = "toggle-audio"
	EventScreenShareAlt = "screen-share"

	EventWhiteboardDraw  = "whiteboard-draw"
	EventWhiteboardClear = "whiteboard-clear"
	EventWhiteboardUndo  = "whiteboard-undo"
	EventWhiteboardRedo  = "whiteboard-redo"

	EventVideoOffer        = "video-offer"
	EventVideoAnswer       = "video-answer"
	EventVideoICECandidate = "video-ice-candidate"

	EventFileUploaded = "file_uploaded"
	EventFileDeleted  = "file_deleted"

	EventPing = "ping"
)

// 서버 → 클라이언트 이벤트
const (
	EventReceiveMessage = "receive_message"
	EventRoomMembers    = "room_members"
	EventUserLeft       = "user-left"
	EventNewFile        = "new_file"
	EventFileRemoved    = "file_removed"
	EventFileDeleteAck  = "file_delete_ack"
	EventPong           = "pong"
)

// Frame 웹소켓 프레임 {"event": ..., "data": ...}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outboundFrame 송신용 (data는 임의 값)
type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// DecodeFrame 수신 프레임 파싱
func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, apperr.InvalidArgument("malformed frame")
	}
	if f.Event == "" {
		return Frame{}, apperr.InvalidArgument("missing event name")
	}
	return f, nil
}

// UserLeftPayload 영상 레이어 정리용 알림
type UserLeftPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// roomCodeOf 페이로드에서 roomCode 추출
func roomCodeOf(data json.RawMessage) (string, error) {
	if len(data) == 0 || !gjson.ValidBytes(data) {
		return "", apperr.InvalidArgument("malformed payload")
	}
	code := strings.TrimSpace(gjson.GetBytes(data, "roomCode").String())
	if code == "" {
		return "", apperr.InvalidArgument("missing room code")
	}
	if !model.ValidRoomCode(code) {
		return "", apperr.InvalidArgument("invalid room code")
	}
	return code, nil
}
