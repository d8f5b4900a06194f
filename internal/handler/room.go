package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/auth"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/presence"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/service"
)

// PresenceReader 다른 프로세스까지 포함한 방 멤버 조회 (Redis 미러)
type PresenceReader interface {
	RoomMembers(ctx context.Context, roomCode string) ([]presence.Participant, error)
}

// RoomHandler 스터디룸 REST 핸들러
type RoomHandler struct {
	rooms    *service.RoomService
	registry *presence.Registry
	mirror   PresenceReader // nil이면 로컬 레지스트리 사용
}

// NewRoomHandler RoomHandler 생성
func NewRoomHandler(rooms *service.RoomService, registry *presence.Registry, mirror PresenceReader) *RoomHandler {
	return &RoomHandler{rooms: rooms, registry: registry, mirror: mirror}
}

// CreateRoomRequest 방 생성 요청
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
	Pin         string `json:"pin"`
	Capacity    int    `json:"capacity"`
}

// JoinRoomRequest 방 입장 요청
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
	Pin    string `json:"pin"`
}

// LeaveRoomRequest 방 퇴장 요청
type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

// Create 방 생성
func (h *RoomHandler) Create(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	room, err := h.rooms.Create(c.UserContext(), auth.UserID(c), auth.Username(c), service.CreateRoomInput{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		Pin:         req.Pin,
		Capacity:    req.Capacity,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

// Join 방 입장 (실시간 join_room 전에 호출)
func (h *RoomHandler) Join(c *fiber.Ctx) error {
	var req JoinRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if strings.TrimSpace(req.RoomID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "roomId is required",
		})
	}

	room, err := h.rooms.Join(c.UserContext(), strings.TrimSpace(req.RoomID), auth.UserID(c), auth.Username(c), req.Pin)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(room)
}

// Mine 내가 속한 방 목록
func (h *RoomHandler) Mine(c *fiber.Ctx) error {
	rooms, err := h.rooms.Mine(c.UserContext(), auth.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rooms)
}

// Get 방 상세
func (h *RoomHandler) Get(c *fiber.Ctx) error {
	room, err := h.rooms.Get(c.UserContext(), c.Params("roomId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(room)
}

// Leave 방 멤버십 해제
func (h *RoomHandler) Leave(c *fiber.Ctx) error {
	var req LeaveRoomRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.RoomID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "roomId is required",
		})
	}

	room, err := h.rooms.Leave(c.UserContext(), strings.TrimSpace(req.RoomID), auth.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "left room successfully",
		"room":    room,
	})
}

// Presence 현재 접속 중인 멤버 스냅샷
func (h *RoomHandler) Presence(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	if h.mirror != nil {
		members, err := h.mirror.RoomMembers(c.UserContext(), roomID)
		if err == nil {
			return c.JSON(fiber.Map{"roomId": roomID, "members": members})
		}
		// 미러 장애 시 로컬 레지스트리로 대체
	}
	return c.JSON(fiber.Map{"roomId": roomID, "members": h.registry.ListRoom(roomID)})
}
