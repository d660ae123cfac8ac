// SPDX-License-Identifier: MIT

package feed

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/reelstack/playcore/internal/descriptor"
)

// GenerateDemoFeed synthesizes n streamed-video descriptors with stable
// 32-byte-hex ids, for use by the demo CLI and by tests that need a
// realistic-looking feed without a real ingestion transport. Every
// unplayableEvery'th item (if > 0) is given an empty URL to exercise
// partial-failure handling.
func GenerateDemoFeed(n int, unplayableEvery int) []descriptor.Descriptor {
	out := make([]descriptor.Descriptor, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("demo-feed-item-%d", i))).String()
		id = compact(id)

		url := fmt.Sprintf("https://cdn.example.test/clips/%04d.mp4", i)
		if unplayableEvery > 0 && i%unplayableEvery == unplayableEvery-1 {
			url = ""
		}

		out = append(out, descriptor.Descriptor{
			ID:       id,
			URL:      url,
			Kind:     descriptor.KindStreamedVideo,
			Width:    1080,
			Height:   1920,
			Duration: 15_000,
		})
	}
	return out
}

// compact strips hyphens from a UUID string to produce a stable 32-byte
// hex id.
func compact(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r != '-' {
			out = append(out, byte(r))
		}
	}
	return string(out)
}
