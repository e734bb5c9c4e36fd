package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TranscriptEntry is a single turn in a call transcript.
type TranscriptEntry struct {
	Role      string    `json:"role"` // "assistant" or "patient"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	transcriptKeyPrefix = "call:transcript:"
	transcriptTTL       = 24 * time.Hour
)

// TranscriptStore keeps per-call transcripts in Redis. Transcripts are
// ephemeral operational data with a short TTL; they never become part of
// the persisted report shape.
type TranscriptStore struct {
	rdb *redis.Client
}

// NewTranscriptStore creates a transcript store backed by Redis.
func NewTranscriptStore(rdb *redis.Client) *TranscriptStore {
	return &TranscriptStore{rdb: rdb}
}

func transcriptKey(sessionID string) string {
	return transcriptKeyPrefix + sessionID
}

// Append adds one turn to the call transcript and refreshes its TTL.
func (s *TranscriptStore) Append(ctx context.Context, sessionID string, entry TranscriptEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("voice transcript: marshal: %w", err)
	}
	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, transcriptKey(sessionID), data)
	pipe.Expire(ctx, transcriptKey(sessionID), transcriptTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// List retrieves the full transcript for a call session.
func (s *TranscriptStore) List(ctx context.Context, sessionID string) ([]TranscriptEntry, error) {
	data, err := s.rdb.LRange(ctx, transcriptKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("voice transcript: list: %w", err)
	}
	entries := make([]TranscriptEntry, 0, len(data))
	for _, d := range data {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(d), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
