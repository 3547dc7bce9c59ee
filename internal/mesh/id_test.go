package mesh

import "testing"

func TestNewMessageIDShapeAndUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewMessageID()
		if len(id) != 8 {
			t.Fatalf("expected an 8 character id, got %q (len %d)", id, len(id))
		}
		if seen[id] {
			t.Fatalf("collided on id %q after %d draws", id, i)
		}
		seen[id] = true
	}
}
