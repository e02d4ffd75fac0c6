package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRecordFieldNames(t *testing.T) {
	tests := []struct {
		name string
		v    any
		keys []string
	}{
		{name: "product", v: Product{}, keys: []string{"affiliate_link", "image_url", "is_active"}},
		{name: "config", v: BroadcastConfig{}, keys: []string{"whatsapp_group", "message_template", "send_interval"}},
		{name: "log", v: SendLog{}, keys: []string{"message_config_id", "message_content", "sent_at"}},
		{name: "video", v: VideoAsset{}, keys: []string{"file_url", "file_size", "created_by"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatal(err)
			}
			var fields map[string]any
			if err := json.Unmarshal(raw, &fields); err != nil {
				t.Fatal(err)
			}
			for _, k := range tt.keys {
				if _, ok := fields[k]; !ok {
					t.Errorf("%s JSON lacks %q: %s", tt.name, k, raw)
				}
			}
		})
	}
}

func TestBroadcastConfig_Due(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute)
	old := now.Add(-2 * time.Hour)

	tests := []struct {
		name string
		cfg  BroadcastConfig
		want bool
	}{
		{name: "never sent", cfg: BroadcastConfig{Active: true, IntervalMinutes: 60}, want: true},
		{name: "inactive", cfg: BroadcastConfig{IntervalMinutes: 60}, want: false},
		{name: "within interval", cfg: BroadcastConfig{Active: true, IntervalMinutes: 60, LastSentAt: &recent}, want: false},
		{name: "interval elapsed", cfg: BroadcastConfig{Active: true, IntervalMinutes: 60, LastSentAt: &old}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Due(now); got != tt.want {
				t.Errorf("Due() = %v, want %v", got, tt.want)
			}
		})
	}
}
