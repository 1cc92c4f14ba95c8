package models

import "testing"

func TestDecodeDataThroughFrame(t *testing.T) {
	for _, name := range []string{EncodingJSON, EncodingMsgpack} {
		t.Run(name, func(t *testing.T) {
			c, err := CodecFor(name)
			if err != nil {
				t.Fatal(err)
			}
			raw, err := c.Marshal(Frame{
				Event:     EventJoinRoom,
				RequestID: "r1",
				Data:      JoinRoomRequest{RoomID: "room-1", Passcode: "K7PX2M"},
			})
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}

			var f Frame
			if err := c.Unmarshal(raw, &f); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if f.Event != EventJoinRoom || f.RequestID != "r1" {
				t.Fatalf("frame = %+v", f)
			}

			var req JoinRoomRequest
			if err := DecodeData(c, f.Data, &req); err != nil {
				t.Fatalf("DecodeData: %v", err)
			}
			if req.RoomID != "room-1" || req.Passcode != "K7PX2M" {
				t.Fatalf("request = %+v", req)
			}
		})
	}
}

func TestCodecForRejectsUnknown(t *testing.T) {
	if _, err := CodecFor("xml"); err == nil {
		t.Fatal("CodecFor(xml) succeeded")
	}
	c, err := CodecFor("")
	if err != nil || c.Binary() {
		t.Fatalf("default codec = %v, %v; want text JSON", c, err)
	}
}

func TestLegacyReplacement(t *testing.T) {
	if got, ok := LegacyReplacement("anon_msg"); !ok || got != EventSendMessage {
		t.Fatalf("anon_msg -> %q, %v", got, ok)
	}
	if _, ok := LegacyReplacement(string(EventSendMessage)); ok {
		t.Fatal("canonical name reported as legacy")
	}
}

func TestSettingsPatchApply(t *testing.T) {
	off := false
	p := SettingsPatch{AllowScreenShare: &off}
	got := p.Apply(DefaultMeetingSettings())
	want := MeetingSettings{AllowChat: true, AllowScreenShare: false, AutoDelete: true, RequirePasscode: true}
	if got != want {
		t.Fatalf("Apply = %+v, want %+v", got, want)
	}
	if p.IsEmpty() || !(SettingsPatch{}).IsEmpty() {
		t.Fatal("IsEmpty wrong")
	}
}
