// Package artifacts persists deployment records. Every completed run is
// kept under its own key and the "latest" key always names the most
// recent one.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"manga/offchain/internal/errs"
	"manga/offchain/internal/models"
)

// LatestKey addresses the most recently saved record
const LatestKey = "latest"

const keyPrefix = "deployment-"

// Store is a durable record of deployments
type Store interface {
	// Save writes rec under a new history key and under LatestKey.
	// It returns the history key.
	Save(ctx context.Context, rec *models.DeploymentRecord) (string, error)
	// Load returns the record stored under key, or a NotFoundError
	Load(ctx context.Context, key string) (*models.DeploymentRecord, error)
	// List returns history keys, oldest first
	List(ctx context.Context) ([]string, error)
}

// Encode serializes a record as indented JSON. Field and contract order
// follow the record.
func Encode(rec *models.DeploymentRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("failed to encode deployment record: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a serialized record
func Decode(data []byte) (*models.DeploymentRecord, error) {
	var rec models.DeploymentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode deployment record: %w", err)
	}
	return &rec, nil
}

// historyKey builds the key for a record saved at t. attempt > 0 adds a
// suffix so that runs finishing in the same millisecond stay distinct.
func historyKey(t time.Time, attempt int) string {
	key := keyPrefix + strconv.FormatInt(t.UnixMilli(), 10)
	if attempt > 0 {
		key += "-" + strconv.Itoa(attempt)
	}
	return key
}

// checkKey rejects keys that could escape the store
func checkKey(key string) error {
	if key == "" {
		return errs.Invalid("deployment key", key, "must not be empty")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return errs.Invalid("deployment key", key, "must not contain path separators")
	}
	return nil
}

type parsedKey struct {
	key     string
	millis  int64
	attempt int
}

// sortKeys orders history keys by timestamp, then collision suffix
func sortKeys(keys []string) []string {
	parsed := make([]parsedKey, 0, len(keys))
	for _, k := range keys {
		p := parsedKey{key: k}
		rest := strings.TrimPrefix(k, keyPrefix)
		parts := strings.SplitN(rest, "-", 2)
		p.millis, _ = strconv.ParseInt(parts[0], 10, 64)
		if len(parts) == 2 {
			p.attempt, _ = strconv.Atoi(parts[1])
		}
		parsed = append(parsed, p)
	}
	sort.SliceStable(parsed, func(i, j int) bool {
		if parsed[i].millis != parsed[j].millis {
			return parsed[i].millis < parsed[j].millis
		}
		return parsed[i].attempt < parsed[j].attempt
	})
	out := make([]string, len(parsed))
	for i, p := range parsed {
		out[i] = p.key
	}
	return out
}
