package gateway

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/model"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/presence"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/session"
)

// 서버는 획 기록을 보관하지 않는다. 보낸 클라이언트는 이미 로컬에 그렸으므로 제외하고 중계한다

func handleWhiteboardDraw(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
	code, err := requireRoom(s, data)
	if err != nil {
		return s, nil, err
	}

	var stroke model.StrokeEvent
	if err := json.Unmarshal(data, &stroke); err != nil {
		return s, nil, apperr.InvalidArgument("malformed stroke")
	}
	if !stroke.Type.Valid() {
		return s, nil, apperr.InvalidArgument("unknown stroke type " + string(stroke.Type))
	}

	return s, []Effect{Emit{Target: RoomExcept(code, s.ConnID), Event: EventWhiteboardDraw, Payload: data}}, nil
}

func handleWhiteboardClear(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
	code, err := requireRoom(s, data)
	if err != nil {
		return s, nil, err
	}
	return s, []Effect{Emit{
		Target:  RoomExcept(code, s.ConnID),
		Event:   EventWhiteboardClear,
		Payload: map[string]string{"roomCode": code},
	}}, nil
}

// whiteboardIndexHandler undo/redo 공유 인덱스 중계 (범위 검사 없음)
func whiteboardIndexHandler(event string) HandlerFunc {
	return func(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
		code, err := requireRoom(s, data)
		if err != nil {
			return s, nil, err
		}

		index := gjson.GetBytes(data, "historyIndex")
		if index.Type != gjson.Number {
			return s, nil, apperr.InvalidArgument("historyIndex must be a number")
		}

		return s, []Effect{Emit{
			Target: RoomExcept(code, s.ConnID),
			Event:  event,
			Payload: map[string]interface{}{
				"roomCode":     code,
				"historyIndex": json.RawMessage(index.Raw),
			},
		}}, nil
	}
}

func handleFileUploaded(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
	code, err := requireRoom(s, data)
	if err != nil {
		return s, nil, err
	}

	file := gjson.GetBytes(data, "file")
	if !file.Exists() {
		return s, nil, apperr.InvalidArgument("missing file")
	}

	return s, []Effect{Emit{
		Target:  RoomExcept(code, s.ConnID),
		Event:   EventNewFile,
		Payload: map[string]json.RawMessage{"file": json.RawMessage(file.Raw)},
	}}, nil
}

func handleFileDeleted(reg *presence.Registry, s session.Session, data json.RawMessage) (session.Session, []Effect, error) {
	code, err := requireRoom(s, data)
	if err != nil {
		return s, nil, err
	}

	fileID := gjson.GetBytes(data, "fileId")
	if !fileID.Exists() || fileID.String() == "" {
		return s, nil, apperr.InvalidArgument("missing fileId")
	}
	payload := map[string]json.RawMessage{"fileId": json.RawMessage(fileID.Raw)}

	return s, []Effect{
		Emit{Target: RoomExcept(code, s.ConnID), Event: EventFileRemoved, Payload: payload},
		Emit{Target: Conn(s.ConnID), Event: EventFileDeleteAck, Payload: payload},
	}, nil
}
