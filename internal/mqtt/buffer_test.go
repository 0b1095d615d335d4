package mqtt

import "testing"

func TestRingBufferFIFO(t *testing.T) {
	r := newRingBuffer(3)

	r.push(bufferedMsg{topic: "a"})
	r.push(bufferedMsg{topic: "b"})
	if r.len() != 2 {
		t.Errorf("expected len 2, got %d", r.len())
	}

	msgs := r.drainAll()
	if len(msgs) != 2 || msgs[0].topic != "a" || msgs[1].topic != "b" {
		t.Errorf("unexpected drain order: %v", msgs)
	}
	if r.len() != 0 {
		t.Errorf("expected empty after drain, got %d", r.len())
	}
}

func TestRingBufferOverflowDropsOldest(t *testing.T) {
	r := newRingBuffer(2)

	r.push(bufferedMsg{topic: "a"})
	r.push(bufferedMsg{topic: "b"})
	r.push(bufferedMsg{topic: "c"})

	msgs := r.drainAll()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].topic != "b" || msgs[1].topic != "c" {
		t.Errorf("expected oldest dropped, got %v", msgs)
	}
}

func TestRingBufferDrainEmpty(t *testing.T) {
	r := newRingBuffer(2)
	if msgs := r.drainAll(); msgs != nil {
		t.Errorf("expected nil for empty drain, got %v", msgs)
	}
}
