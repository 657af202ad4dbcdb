package protocol

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := NewCodec()
	msg := &Message{
		Type: MessageMove,
		Move: &Move{EntityID: 1, X: 4, Y: 5, Sequence: 3},
	}

	data, err := c.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Type != MessageMove || got.Move == nil || got.Move.EntityID != 1 || got.Move.X != 4 || got.Move.Y != 5 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestEncodeRejectsNil(t *testing.T) {
	c := NewCodec()
	if _, err := c.Encode(nil); err == nil {
		t.Fatal("expected error encoding nil message")
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	c := NewCodec()
	if _, err := c.Decode(nil); err == nil {
		t.Fatal("expected error decoding empty data")
	}
}

func TestValidateMessageRequiresPayload(t *testing.T) {
	c := NewCodec()
	msg := &Message{Type: MessageSpawn}
	if err := c.ValidateMessage(msg); err == nil {
		t.Fatal("expected error for spawn message with nil payload")
	}
}

func TestValidateMessageRejectsUnknownType(t *testing.T) {
	c := NewCodec()
	msg := &Message{Type: "bogus"}
	if err := c.ValidateMessage(msg); err != ErrUnknownType {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestValidateMessageAcceptsWellFormedHeartbeat(t *testing.T) {
	c := NewCodec()
	msg := &Message{Type: MessageHeartbeat, Heartbeat: &Heartbeat{ClientID: "abc"}}
	if err := c.ValidateMessage(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
