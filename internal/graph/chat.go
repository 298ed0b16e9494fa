package graph

import (
	"context"
	"fmt"
	"net/url"
)

type chatMember struct {
	ODataType string   `json:"@odata.type"`
	Roles     []string `json:"roles"`
	UserBind  string   `json:"user@odata.bind"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

func (c *Client) member(upn string) chatMember {
	return chatMember{
		ODataType: "#microsoft.graph.aadUserConversationMember",
		Roles:     []string{"owner"},
		UserBind:  fmt.Sprintf("https://graph.microsoft.com/v1.0/users('%s')", upn),
	}
}

// SendDirect posts an HTML message to the one-on-one Teams chat between the
// sender and upn. Graph returns the existing chat when one already exists.
func (c *Client) SendDirect(ctx context.Context, upn, text string) error {
	if c.dryRun("Would send Teams message to %s (%d chars)", upn, len(text)) {
		return nil
	}

	var chat struct {
		ID string `json:"id"`
	}
	req := map[string]any{
		"chatType": "oneOnOne",
		"members":  []chatMember{c.member(c.sender), c.member(upn)},
	}
	if err := c.do(ctx, "POST", "/chats", req, &chat, nil); err != nil {
		return fmt.Errorf("create chat with %s: %w", upn, err)
	}
	if chat.ID == "" {
		return fmt.Errorf("create chat with %s: empty chat id", upn)
	}

	msg := map[string]any{"body": itemBody{ContentType: "html", Content: text}}
	if err := c.do(ctx, "POST", "/chats/"+url.PathEscape(chat.ID)+"/messages", msg, nil, nil); err != nil {
		return fmt.Errorf("post chat message to %s: %w", upn, err)
	}
	return nil
}
