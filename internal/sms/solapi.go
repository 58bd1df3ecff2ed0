package sms

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultSolapiURL is the SOLAPI single-message endpoint.
const DefaultSolapiURL = "https://api.solapi.com/messages/v4/send"

// solapiClient is the concrete Sender backed by the SOLAPI messaging API.
type solapiClient struct {
	apiKey     string
	apiSecret  string
	sender     string // registered sender number
	endpoint   string
	httpClient *http.Client

	now  func() time.Time
	salt func() (string, error)
}

// NewSolapiClient returns a Sender that delivers text messages via SOLAPI.
// An empty endpoint selects DefaultSolapiURL.
func NewSolapiClient(apiKey, apiSecret, sender, endpoint string) Sender {
	if endpoint == "" {
		endpoint = DefaultSolapiURL
	}
	return &solapiClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		sender:    sender,
		endpoint:  endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now:  time.Now,
		salt: randomSalt,
	}
}

// ─── SOLAPI API SHAPES ────────────────────────────────────────────────────────

type solapiMessage struct {
	To   string `json:"to"`
	From string `json:"from"`
	Text string `json:"text"`
}

type solapiRequest struct {
	Message solapiMessage `json:"message"`
}

type solapiResponse struct {
	MessageID     string `json:"messageId"`
	StatusCode    string `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	ErrorCode     string `json:"errorCode"`
	ErrorMessage  string `json:"errorMessage"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

func (c *solapiClient) Send(ctx context.Context, m Message) error {
	bodyBytes, err := json.Marshal(solapiRequest{
		Message: solapiMessage{To: m.To, From: c.sender, Text: m.Text},
	})
	if err != nil {
		return fmt.Errorf("sms: marshal request: %w", err)
	}

	auth, err := c.authorization()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("sms: read response: %w", err)
	}

	var parsed solapiResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("sms: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.ErrorCode != "" {
		return fmt.Errorf("sms: SOLAPI error %s: %s", parsed.ErrorCode, parsed.ErrorMessage)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	return nil
}

// ─── REQUEST SIGNING ──────────────────────────────────────────────────────────

// authorization builds the HMAC-SHA256 Authorization header value. The
// signature is hex(HMAC_SHA256(secret, date+salt)).
func (c *solapiClient) authorization() (string, error) {
	salt, err := c.salt()
	if err != nil {
		return "", fmt.Errorf("sms: generate salt: %w", err)
	}
	date := c.now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("HMAC-SHA256 apiKey=%s, date=%s, salt=%s, signature=%s",
		c.apiKey, date, salt, Sign(c.apiSecret, date, salt)), nil
}

// Sign returns the SOLAPI request signature for date and salt.
func Sign(secret, date, salt string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(date + salt))
	return hex.EncodeToString(mac.Sum(nil))
}

func randomSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
