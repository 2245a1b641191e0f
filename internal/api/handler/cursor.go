package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/campuslink/portal-sync/internal/api/storage"
)

func DecodeJobCursor(cursorStr string) (*storage.JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	if _, err = fmt.Sscanf(decodedParts[0], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	var id int64
	if _, err = fmt.Sscanf(decodedParts[1], "%d", &id); err != nil {
		return nil, fmt.Errorf("invalid id in cursor: %w", err)
	}

	return &storage.JobCursor{
		CreatedAt: time.Unix(0, createdAt),
		ID:        id,
	}, nil
}

func EncodeJobCursor(cursor *storage.JobCursor) (string, error) {
	cs := fmt.Sprintf("%d|%d", cursor.CreatedAt.UnixNano(), cursor.ID)
	return base64.StdEncoding.EncodeToString([]byte(cs)), nil
}
