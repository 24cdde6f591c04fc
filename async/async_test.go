package async

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumThreads != 0 {
		t.Errorf("expected NumThreads=0 (auto), got %d", cfg.NumThreads)
	}
	if cfg.QueueEntries != 256 {
		t.Errorf("expected QueueEntries=256, got %d", cfg.QueueEntries)
	}
}
