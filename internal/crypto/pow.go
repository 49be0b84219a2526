package crypto

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/bits"
	"runtime"
	"strconv"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// powRefreshInterval is how many hashes a worker tries between context
// checks and created_at refreshes.
const powRefreshInterval = 1 << 12

type powResult struct {
	id        [32]byte
	createdAt nostr.Timestamp
	tags      nostr.Tags
}

// LeadingZeroBits counts the leading zero bits of id.
func LeadingZeroBits(id []byte) int {
	n := 0
	for _, b := range id {
		if b != 0 {
			return n + bits.LeadingZeros8(b)
		}
		n += 8
	}
	return n
}

// MinePoW searches for a NIP-13 nonce that gives evt an id with at least
// difficulty leading zero bits. On success evt carries the winning nonce
// tag and created_at and the id is returned. Long searches refresh
// created_at so the event is not stale when it is found. The search stops
// with ctx's error when ctx is done. workers <= 0 uses one per CPU.
func MinePoW(ctx context.Context, evt *nostr.Event, difficulty, workers int) ([32]byte, error) {
	var id [32]byte
	if difficulty < 0 || difficulty > 8*len(id) {
		return id, fmt.Errorf("pow difficulty %d out of range", difficulty)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	search, cancel := context.WithCancel(ctx)
	defer cancel()

	// Workers only ever see base; evt is written once they have all stopped.
	base := *evt
	found := make(chan powResult, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start uint64) {
			defer wg.Done()
			mine(search, base, difficulty, start, uint64(workers), found)
		}(uint64(w))
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var res powResult
	select {
	case res = <-found:
	case <-done:
		// Every worker gave up before any result could be read.
		select {
		case res = <-found:
		default:
			return id, ctx.Err()
		}
	}
	cancel()
	<-done

	evt.CreatedAt = res.createdAt
	evt.Tags = res.tags
	return res.id, nil
}

// mine works on its own copy of evt, trying nonce, nonce+step, ...
func mine(ctx context.Context, evt nostr.Event, difficulty int, nonce, step uint64, found chan<- powResult) {
	tags := make(nostr.Tags, 0, len(evt.Tags)+1)
	for _, t := range evt.Tags {
		if len(t) > 0 && t[0] == "nonce" {
			continue
		}
		tags = append(tags, t)
	}
	slot := len(tags)
	tags = append(tags, nostr.Tag{"nonce", "", strconv.Itoa(difficulty)})
	evt.Tags = tags

	for i := 0; ; i++ {
		if i > 0 && i%powRefreshInterval == 0 {
			if ctx.Err() != nil {
				return
			}
			evt.CreatedAt = nostr.Now()
		}
		tags[slot][1] = strconv.FormatUint(nonce, 10)
		id := sha256.Sum256(evt.Serialize())
		if LeadingZeroBits(id[:]) >= difficulty {
			found <- powResult{id: id, createdAt: evt.CreatedAt, tags: tags}
			return
		}
		nonce += step
	}
}
