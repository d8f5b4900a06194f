package model

// StrokeKind 화이트보드 획 이벤트 종류
type StrokeKind string

const (
	StrokeStart StrokeKind = "start"
	StrokeDraw  StrokeKind = "draw"
)

// Valid 알려진 획 종류인지 확인
func (k StrokeKind) Valid() bool {
	return k == StrokeStart || k == StrokeDraw
}

// StrokeEvent 화이트보드 획 이벤트 (서버는 저장하지 않고 중계만 함)
type StrokeEvent struct {
	RoomCode  string     `json:"roomCode"`
	Type      StrokeKind `json:"type"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Color     string     `json:"color"`
	BrushSize float64    `json:"brushSize"`
	UserID    string     `json:"userId,omitempty"`
	Username  string     `json:"username,omitempty"`
	Timestamp int64      `json:"timestamp"`
}
