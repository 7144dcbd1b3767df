package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/commsware/channel-whatsapp/internal/whatsapp"
)

const defaultSessionTTL = 15 * time.Minute

// ErrSessionNotFound indicates the flow id has no live session, either
// because the flow never started or because the TTL elapsed.
var ErrSessionNotFound = errors.New("oauth: session not found or expired")

// Session is the transient state of one authorization flow. It never reaches
// the database; it lives in redis under a short TTL.
type Session struct {
	State        string                 `json:"state,omitempty"`
	AccessToken  string                 `json:"access_token,omitempty"`
	BusinessID   string                 `json:"business_id,omitempty"`
	PhoneNumbers []whatsapp.PhoneNumber `json:"phone_numbers,omitempty"`
}

// SessionStore keeps OAuth flow sessions in redis, keyed by flow id.
type SessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if client == nil {
		panic("oauth: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("comms.internal.oauth.session"),
	}
}

func (s *SessionStore) Save(ctx context.Context, flowID string, session *Session) error {
	ctx, span := s.tracer.Start(ctx, "oauth.save_session")
	defer span.End()

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("oauth: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(flowID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("oauth: failed to persist session: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, flowID string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "oauth.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(flowID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("oauth: failed to load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("oauth: failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, flowID string) error {
	ctx, span := s.tracer.Start(ctx, "oauth.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(flowID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("oauth: failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(flowID string) string {
	return fmt.Sprintf("whatsapp_oauth:flow:%s", flowID)
}
