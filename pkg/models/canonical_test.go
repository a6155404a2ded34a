package models

import "testing"

func TestCanonicalPairSymmetry(t *testing.T) {
	l1, h1 := CanonicalPair("alice", "bob")
	l2, h2 := CanonicalPair("bob", "alice")
	if l1 != l2 || h1 != h2 {
		t.Fatalf("pair not symmetric: (%s,%s) vs (%s,%s)", l1, h1, l2, h2)
	}
	if l1 != "alice" || h1 != "bob" {
		t.Fatalf("unexpected order: %s,%s", l1, h1)
	}
}

func TestThreadParticipants(t *testing.T) {
	th := Thread{ParticipantLow: "alice", ParticipantHigh: "bob"}
	if !th.HasParticipant("alice") || !th.HasParticipant("bob") {
		t.Fatal("participants not recognized")
	}
	if th.HasParticipant("carol") {
		t.Fatal("non-participant recognized")
	}
	if got := th.OtherParticipant("alice"); got != "bob" {
		t.Fatalf("other of alice = %s", got)
	}
	if got := th.OtherParticipant("bob"); got != "alice" {
		t.Fatalf("other of bob = %s", got)
	}
}

func TestMessageHasContent(t *testing.T) {
	if (&Message{}).HasContent() {
		t.Fatal("empty message should have no content")
	}
	if !(&Message{Body: "hi"}).HasContent() {
		t.Fatal("body counts as content")
	}
	if !(&Message{AttachmentURL: "chat/x.jpg"}).HasContent() {
		t.Fatal("attachment counts as content")
	}
}
