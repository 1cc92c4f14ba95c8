package main

import (
	"strings"
	"testing"
	"time"

	"github.com/mossy-p/burner-signaling/internal/models"
)

func TestRoomTable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if got := roomTable(nil, now); got != "No live rooms" {
		t.Errorf("empty table = %q", got)
	}

	out := roomTable([]models.RoomSummary{
		{RoomID: "room-a", Kind: "meeting", Status: "active", ParticipantCount: 3, MaxParticipants: 10, PasscodeRequired: true, ExpiresAt: now.Add(90 * time.Minute)},
		{RoomID: "room-b", Kind: "signaling", Status: "forming", ParticipantCount: 1, MaxParticipants: 2, ExpiresAt: now.Add(time.Hour)},
	}, now)
	for _, want := range []string{"room-a", "meeting", "3/10", "1h30m0s", "room-b", "1/2"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "identity", "rooms"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}
}
