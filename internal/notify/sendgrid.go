package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"
)

const (
	sendGridURL = "https://api.sendgrid.com/v3/mail/send"
	sendTimeout = 15 * time.Second
)

// SendGridSender talks to the SendGrid v3 mail API.
type SendGridSender struct {
	apiKey      string
	senderEmail string
	senderName  string
	frontend    string
	endpoint    string
	client      *http.Client
}

func NewSendGridSender(apiKey, senderEmail, frontend string) *SendGridSender {
	return &SendGridSender{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  "News Rewards",
		frontend:    frontend,
		endpoint:    sendGridURL,
		client:      &http.Client{Timeout: sendTimeout},
	}
}

// SendGrid request format
type sgEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
type sgPersonalization struct {
	To []sgEmail `json:"to"`
}
type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgEmail             `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

func (s *SendGridSender) SendWelcome(ctx context.Context, toEmail, name, referralCode string) error {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">
<h3>Welcome, %s!</h3>
<p>Read the news, earn coins and redeem them for gift cards.</p>
<p>Your referral code is <b>%s</b>. Share it with friends when they sign up.</p>
<p><a href="%s">Start reading</a></p>
</body></html>`, html.EscapeString(name), html.EscapeString(referralCode), s.frontend)
	return s.send(ctx, toEmail, "Welcome to News Rewards", body)
}

func (s *SendGridSender) SendGiftCode(ctx context.Context, toEmail, cardName, giftCode string) error {
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">
<h3>Your %s is ready</h3>
<p>Gift code: <b>%s</b></p>
<p>Thanks for reading with us.</p>
</body></html>`, html.EscapeString(cardName), html.EscapeString(giftCode))
	return s.send(ctx, toEmail, "Your gift card code", body)
}

func (s *SendGridSender) SendVerificationCode(ctx context.Context, toEmail, name, code string) error {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">
<h3>Hi %s,</h3>
<p>Your verification code is:</p>
<h2 style="letter-spacing: 4px;">%s</h2>
<p>The code expires in 10 minutes. If you did not sign up, ignore this email.</p>
</body></html>`, html.EscapeString(name), html.EscapeString(code))
	return s.send(ctx, toEmail, "Verify your email", body)
}

func (s *SendGridSender) SendPasswordReset(ctx context.Context, toEmail, name, code string) error {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">
<h3>Hi %s,</h3>
<p>Use this code to reset your password:</p>
<h2 style="letter-spacing: 4px;">%s</h2>
<p>The code expires in 1 hour. If you did not ask for a reset, your password is unchanged.</p>
<p><a href="%s/reset-password">Reset password</a></p>
</body></html>`, html.EscapeString(name), html.EscapeString(code), s.frontend)
	return s.send(ctx, toEmail, "Reset your password", body)
}

func (s *SendGridSender) send(ctx context.Context, toEmail, subject, htmlBody string) error {
	payload := sgRequest{
		Personalizations: []sgPersonalization{{To: []sgEmail{{Email: toEmail}}}},
		From:             sgEmail{Email: s.senderEmail, Name: s.senderName},
		Subject:          subject,
		Content:          []sgContent{{Type: "text/html", Value: htmlBody}},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sendgrid request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer resp.Body.Close()

	// SendGrid answers 202 on success
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sendgrid error: status=%d body=%s", resp.StatusCode, body)
	}
	return nil
}
