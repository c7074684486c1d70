package backup

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestObjectStoreConfig_EnabledRequiresAllFields(t *testing.T) {
	cases := []struct {
		name string
		cfg  ObjectStoreConfig
		want bool
	}{
		{"all set", ObjectStoreConfig{AccountID: "a", AccessKeyID: "b", SecretAccessKey: "c", Bucket: "d"}, true},
		{"missing bucket", ObjectStoreConfig{AccountID: "a", AccessKeyID: "b", SecretAccessKey: "c"}, false},
		{"empty", ObjectStoreConfig{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Enabled(); got != tc.want {
				t.Errorf("Enabled() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNew_DisabledWithoutCredentials(t *testing.T) {
	svc, enabled, err := New(Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if enabled {
		t.Error("expected enabled=false with no object store config")
	}
	if svc != nil {
		t.Error("expected nil service when disabled")
	}
}

// rotationDecision mirrors the retention/floor logic in (*Service).rotate,
// isolated from any network call so the policy itself can be table-tested.
func rotationDecision(count, retentionDays, oldestAgeDays int) bool {
	if count <= minSnapshotsToKeep {
		return false
	}
	if retentionDays <= 0 {
		return false
	}
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -retentionDays)
	oldest := now.AddDate(0, 0, -oldestAgeDays)
	return oldest.Before(cutoff)
}

func TestRotationDecision_RespectsFloorAndRetention(t *testing.T) {
	cases := []struct {
		name          string
		count         int
		retentionDays int
		oldestAge     int
		wantDelete    bool
	}{
		{"below floor, never delete", 2, 30, 100, false},
		{"at floor, never delete", 3, 30, 100, false},
		{"above floor, within retention", 10, 30, 29, false},
		{"above floor, beyond retention", 10, 30, 60, true},
		{"retention disabled keeps everything", 10, 0, 365, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := rotationDecision(tc.count, tc.retentionDays, tc.oldestAge)
			if got != tc.wantDelete {
				t.Errorf("rotationDecision() = %v, want %v", got, tc.wantDelete)
			}
		})
	}
}
