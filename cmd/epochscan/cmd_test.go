package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"github.com/unkn0wn-root/epochcache"
	"github.com/unkn0wn-root/epochcache/quality"
)

func TestParseTask(t *testing.T) {
	hash := "0x" + strings.Repeat("ab", 32)
	task, err := parseTask(hash, "max")
	if err != nil {
		t.Fatalf("parseTask: %v", err)
	}
	if task.Hash[0] != 0xab || task.Hash[31] != 0xab {
		t.Fatalf("hash=%x", task.Hash)
	}
	top := quality.Max()
	if !task.Quality.Eq(&top) {
		t.Fatalf("max target=%s", task.Quality.Hex())
	}

	task, err = parseTask(strings.Repeat("00", 32), "1000")
	if err != nil || !task.Quality.Eq(uint256.NewInt(1000)) {
		t.Fatalf("decimal target: %v %s", err, task.Quality.Dec())
	}
	task, err = parseTask(strings.Repeat("00", 32), "0x3e8")
	if err != nil || !task.Quality.Eq(uint256.NewInt(1000)) {
		t.Fatalf("hex target: %v %s", err, task.Quality.Dec())
	}

	for _, bad := range [][2]string{{"0x12", "max"}, {strings.Repeat("00", 32), "lots"}} {
		if _, err := parseTask(bad[0], bad[1]); err == nil {
			t.Fatalf("parseTask(%q, %q) should fail", bad[0], bad[1])
		}
	}
}

func TestReadBlobs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "blobs.json")
	body := `[{"quorum_id": 2, "storage_root": "0x` + strings.Repeat("11", 32) + `", "indices": [4, 1]}]`
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	blobs, err := readBlobs(p)
	if err != nil {
		t.Fatalf("readBlobs: %v", err)
	}
	if len(blobs) != 1 || blobs[0].QuorumID != 2 || blobs[0].StorageRoot[5] != 0x11 || len(blobs[0].Indices) != 2 {
		t.Fatalf("blobs=%+v", blobs)
	}
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	s := jsonSink{enc: json.NewEncoder(&buf)}
	err := s.Emit(context.Background(), []epochcache.LineCandidate{{
		Slice:   epochcache.SliceIndex{Epoch: 5, QuorumID: 1, StorageRoot: [32]byte{0xff}, Index: 3},
		Quality: *uint256.NewInt(255),
	}})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	var got candidateLine
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Epoch != 5 || got.Index != 3 || got.Quality != "0xff" || !strings.HasPrefix(got.StorageRoot, "0xff00") {
		t.Fatalf("line=%+v", got)
	}
}
