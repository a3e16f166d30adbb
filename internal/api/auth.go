package api

import (
	"context"
	"fmt"

	"github.com/MR-JLTC/tutorchat/internal/session"
)

// Login authenticates a tutor or tutee account and returns the credentials
// to hand to the session manager.
func (c *Client) Login(ctx context.Context, email, password, role string) (*session.Credentials, error) {
	body := map[string]string{"email": email, "password": password}
	if role != "" {
		body["user_type"] = role
	}
	var resp struct {
		User        session.User `json:"user"`
		AccessToken string       `json:"accessToken"`
	}
	if err := c.do(ctx, "POST", "/auth/login-tutor-tutee", body, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	resp.User.Role = session.NormalizeRole(resp.User.Role)
	return &session.Credentials{User: resp.User, Token: resp.AccessToken}, nil
}

// SetTutorOnlineStatus flips a tutor's directory presence flag. Called
// best-effort on logout; failures never block the logout itself.
func (c *Client) SetTutorOnlineStatus(ctx context.Context, userID int64, status string) error {
	path := fmt.Sprintf("/tutors/by-user/%d/online-status", userID)
	if err := c.do(ctx, "PATCH", path, map[string]string{"status": status}, nil); err != nil {
		return fmt.Errorf("set online status: %w", err)
	}
	return nil
}
