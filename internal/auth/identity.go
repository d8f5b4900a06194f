package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/thirumagalmeena/Virtual-Study-Room/internal/apperr"
	"github.com/thirumagalmeena/Virtual-Study-Room/internal/model"
)

// GuestUsername 토큰 없이 접속한 사용자의 기본 이름
const GuestUsername = "Guest"

// Identity 실시간 연결에 바인딩되는 사용자 정보
type Identity struct {
	UserID   string
	Username string
	Guest    bool
}

// Identify 업그레이드 요청에서 신원 확인.
// 토큰이 있으면 반드시 유효해야 하며, 없으면 연결 ID를 사용자 ID로 쓰는 게스트가 된다.
func (m *JWTManager) Identify(c *fiber.Ctx, connID string) (Identity, error) {
	token := c.Query("token")
	if token == "" {
		var err error
		token, err = tokenFromRequest(c)
		if err != nil {
			return Identity{}, apperr.AuthenticationFailed(err.Error())
		}
	}

	if token == "" {
		name := clampName(c.Query("username"))
		if name == "" {
			name = GuestUsername
		}
		return Identity{UserID: connID, Username: name, Guest: true}, nil
	}

	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		return Identity{}, apperr.AuthenticationFailed(err.Error())
	}

	name := clampName(claims.Username)
	if name == "" {
		name = claims.UserID
	}
	return Identity{UserID: claims.UserID, Username: name}, nil
}

// clampName 표시 이름은 작성자 컬럼에 들어가므로 길이 제한
func clampName(name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > model.MaxUsernameLength {
		name = strings.TrimSpace(string(runes[:model.MaxUsernameLength]))
	}
	return name
}
