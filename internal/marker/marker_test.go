package marker

import "testing"

func TestEngine_DetectsWholeMarkerInOneChunk(t *testing.T) {
	e := New("__SP_DONE__ abc123", 0)
	if e.Feed([]byte("some output\n__SP_DONE__ abc123\nmore\n")) != true {
		t.Fatal("expected marker to be found")
	}
}

func TestEngine_DetectsMarkerSplitAcrossChunks(t *testing.T) {
	full := "prefix __SP_DONE__ abc123 suffix"
	e := New("__SP_DONE__ abc123", 0)

	found := false
	for i := 0; i < len(full); i += 5 {
		end := i + 5
		if end > len(full) {
			end = len(full)
		}
		if e.Feed([]byte(full[i:end])) {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected marker split across 5-byte chunks to be found")
	}
}

func TestEngine_EveryChunkingFindsMarker(t *testing.T) {
	target := "__SP_DONE__ xyz"
	stream := "aaaaaaaaaa" + target + "bbbbbbbbbb"

	for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
		e := New(target, 0)
		found := false
		for i := 0; i < len(stream); i += chunkSize {
			end := i + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			if e.Feed([]byte(stream[i:end])) {
				found = true
			}
		}
		if !found {
			t.Fatalf("chunk size %d: marker not found", chunkSize)
		}
	}
}

func TestEngine_NoFalsePositiveBeforeMarkerAppears(t *testing.T) {
	e := New("__SP_DONE__ xyz", 0)
	if e.Feed([]byte("__SP_DONE__ wrong-token")) {
		t.Fatal("unexpected match on wrong token")
	}
	if e.Found() {
		t.Fatal("engine should not report found")
	}
}

func TestEngine_BoundedBuffer(t *testing.T) {
	e := New("__SP_DONE__ xyz", 16)
	// Feed far more than maxBuffer of non-matching data; tail must stay bounded.
	for i := 0; i < 100; i++ {
		e.Feed([]byte("0123456789"))
	}
	if len(e.tail) > 16 {
		t.Fatalf("tail grew beyond bound: %d bytes", len(e.tail))
	}
}

func TestEngine_FoundIsSticky(t *testing.T) {
	e := New("M", 0)
	if !e.Feed([]byte("xMx")) {
		t.Fatal("expected immediate match")
	}
	if !e.Feed([]byte("anything")) {
		t.Fatal("Found should stay true once matched")
	}
}
