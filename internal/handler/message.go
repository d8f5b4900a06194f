package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/auth"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/service"
)

// MessageHandler 채팅 기록 REST 핸들러
type MessageHandler struct {
	store *service.MessageStore
}

// NewMessageHandler MessageHandler 생성
func NewMessageHandler(store *service.MessageStore) *MessageHandler {
	return &MessageHandler{store: store}
}

// GetHistory 방 메시지 기록 조회 (before 이전, 오래된 순)
func (h *MessageHandler) GetHistory(c *fiber.Ctx) error {
	roomCode := c.Params("roomCode")
	limit := c.QueryInt("limit", 0)

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "before must be an RFC3339 timestamp",
			})
		}
		before = &t
	}

	page, err := h.store.Page(c.UserContext(), roomCode, limit, before)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetCount 방 메시지 수
func (h *MessageHandler) GetCount(c *fiber.Ctx) error {
	count, err := h.store.Count(c.UserContext(), c.Params("roomCode"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// Search 방 메시지 검색
func (h *MessageHandler) Search(c *fiber.Ctx) error {
	messages, err := h.store.Search(c.UserContext(), c.Params("roomCode"), c.Query("q"), c.QueryInt("limit", 0))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// Delete 본인 메시지 삭제
func (h *MessageHandler) Delete(c *fiber.Ctx) error {
	if err := h.store.Delete(c.UserContext(), c.Params("messageId"), auth.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "message deleted successfully"})
}
