// ABOUTME: Per-hostname instance metadata cached in the key-value store
// ABOUTME: Detected once per instance and refreshed when stale

package kvstore

import (
	"errors"
	"fmt"
	"time"
)

// InstanceInfo describes a detected ServiceNow instance. Cached per
// hostname so repeated page loads skip re-detection.
type InstanceInfo struct {
	Hostname   string `json:"hostname"`
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
	BuildTag   string `json:"buildTag,omitempty"`
	NodeID     string `json:"nodeId,omitempty"`
	DetectedAt int64  `json:"detectedAt"` // epoch milliseconds
}

// instanceTTL bounds how long cached instance metadata is trusted.
const instanceTTL = 24 * time.Hour

func instanceKey(hostname string) string {
	return "instance_info:" + hostname
}

// GetInstanceInfo returns the cached metadata for a hostname. Stale
// entries (older than a day) are treated as absent.
func (s *Store) GetInstanceInfo(hostname string) (*InstanceInfo, error) {
	var info InstanceInfo
	if err := s.Get(instanceKey(hostname), &info); err != nil {
		return nil, err
	}
	if time.Since(time.UnixMilli(info.DetectedAt)) > instanceTTL {
		return nil, fmt.Errorf("%w: %s (stale)", ErrNotFound, hostname)
	}
	return &info, nil
}

// PutInstanceInfo caches detected metadata for its hostname.
func (s *Store) PutInstanceInfo(info *InstanceInfo) error {
	if info.Hostname == "" {
		return errors.New("instance info requires a hostname")
	}
	if info.DetectedAt == 0 {
		info.DetectedAt = time.Now().UnixMilli()
	}
	return s.Set(instanceKey(info.Hostname), info)
}
