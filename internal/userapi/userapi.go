package userapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized is returned when the API rejects the bearer token (401/403).
var ErrUnauthorized = errors.New("token rejected by user API")

// defaultLoginFailure is shown when the API gives no message of its own.
const defaultLoginFailure = "Falha no login"

// LoginError carries the message the API returned for a failed login.
type LoginError struct {
	Status  int
	Message string
}

func (e *LoginError) Error() string {
	return e.Message
}

// RemoteProduct is a product as listed by the user API.
type RemoteProduct struct {
	ID         int    `json:"id"`
	Nome       string `json:"nome"`
	Descricao  string `json:"descricao"`
	Quantidade int    `json:"quantidade"`
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, senha string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "senha": senha})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/usuarios/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call user API: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Token    string `json:"token"`
		Mensagem string `json:"mensagem"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := body.Mensagem
		if decodeErr != nil || msg == "" {
			msg = defaultLoginFailure
		}
		return "", &LoginError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	if body.Token == "" {
		return "", fmt.Errorf("user API returned no token")
	}

	return body.Token, nil
}

// ListProducts fetches the protected product list on behalf of token.
func (c *Client) ListProducts(ctx context.Context, token string) ([]RemoteProduct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/produtos", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call user API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("user API returned status %d", resp.StatusCode)
	}

	var products []RemoteProduct
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return products, nil
}
