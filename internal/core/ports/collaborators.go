package ports

import (
	"context"
	"time"

	"github.com/pralapin/school-service/internal/core/domain"
)

// ObjectStore keeps uploaded files. Put returns the public URL of the object.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// PushMessage is one notification addressed to at most MaxPushBatch tokens.
type PushMessage struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data"`
}

// MaxPushBatch is the largest token batch handed to a sender in one call.
const MaxPushBatch = 500

type BatchResult struct {
	SuccessCount int `json:"success_count"`
	FailureCount int `json:"failure_count"`
}

// PushSender delivers one batch. An unconfigured sender returns a zero
// result and no error.
type PushSender interface {
	Send(ctx context.Context, msg PushMessage) (BatchResult, error)
}

// ReceiptRenderer turns a paid billing into document bytes.
type ReceiptRenderer interface {
	Render(billing *domain.Billing, rc domain.ReceiptContext) ([]byte, error)
}

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type Claims struct {
	Subject   string
	Role      string
	Type      TokenType
	ID        string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies session tokens. Verify fails closed.
type TokenIssuer interface {
	IssueAccess(userID, role string) (string, error)
	IssueRefresh(userID string) (string, error)
	Verify(token string) (*Claims, error)
}

// RevocationStore remembers revoked refresh tokens until they expire.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashed, password string) bool
}
