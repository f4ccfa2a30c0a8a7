package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/epochcache"
	redissrc "github.com/unkn0wn-root/epochcache/source/redis"
)

// blobFile is the JSON input of publish: roots are hex, with or without 0x.
type blobFile []struct {
	QuorumID    uint64   `json:"quorum_id"`
	StorageRoot string   `json:"storage_root"`
	Indices     []uint32 `json:"indices"`
}

func newPublishCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "publish <epoch>",
		Short: "Publish the blob set of one epoch to Redis and raise the tip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("epoch %q: %w", args[0], err)
			}
			blobs, err := readBlobs(file)
			if err != nil {
				return err
			}
			c, err := a.codec()
			if err != nil {
				return err
			}
			pub, err := redissrc.NewPublisher(redissrc.Config{
				Client:    a.rdb,
				Namespace: a.cfg.Redis.Namespace,
				Codec:     c,
			})
			if err != nil {
				return err
			}
			if err := pub.Publish(cmd.Context(), epoch, blobs); err != nil {
				return err
			}
			a.logger().Info("epoch published", epochcache.Fields{"epoch": epoch, "blobs": len(blobs)})
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON blob list; - reads stdin")
	return cmd
}

func readBlobs(path string) ([]epochcache.BlobInfo, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read blobs: %w", err)
	}

	var in blobFile
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("parse blobs: %w", err)
	}
	out := make([]epochcache.BlobInfo, 0, len(in))
	for i, b := range in {
		root, err := parseHash(b.StorageRoot)
		if err != nil {
			return nil, fmt.Errorf("blob %d storage_root: %w", i, err)
		}
		out = append(out, epochcache.BlobInfo{QuorumID: b.QuorumID, StorageRoot: root, Indices: b.Indices})
	}
	return out, nil
}

func parseHash(s string) ([32]byte, error) {
	var h [32]byte
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
