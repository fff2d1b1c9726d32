package crawler

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// falsePositiveRate is the bloom filter's target false-positive rate. A
// false positive makes the crawler skip a page it has not seen.
const falsePositiveRate = 0.001

// VisitedTracker remembers which URLs have been enqueued, using a bloom
// filter mirrored to a memory-mapped temp file so memory stays flat on
// large crawls.
type VisitedTracker struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	file      *os.File
	mmap      mmap.MMap
	tmpPath   string
	added     uint64 // URLs added in total
	pending   uint64 // URLs added since last sync
	syncEvery uint64
	lastErr   error
}

// NewVisitedTracker creates a tracker sized for about expected URLs.
func NewVisitedTracker(expected uint) (*VisitedTracker, error) {
	if expected < 1000 {
		expected = 1000
	}
	filter := bloom.NewWithEstimates(expected, falsePositiveRate)

	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "mdcrawl-visited-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}

	// Size the file for the serialized filter, header included.
	if err := tmpFile.Truncate(int64(len(data))); err != nil {
		cleanup()
		return nil, fmt.Errorf("truncate temp file: %w", err)
	}
	mapped, err := mmap.MapRegion(tmpFile, len(data), mmap.RDWR, 0, 0)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap temp file: %w", err)
	}
	copy(mapped, data)

	return &VisitedTracker{
		filter:    filter,
		file:      tmpFile,
		mmap:      mapped,
		tmpPath:   tmpPath,
		syncEvery: 1000,
	}, nil
}

// VisitIfNew marks url as visited and reports whether it was new.
func (v *VisitedTracker) VisitIfNew(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.filter.TestOrAddString(url) {
		return false
	}
	v.added++
	v.pending++
	if v.pending >= v.syncEvery {
		// Periodic sync is best-effort; the error surfaces on Close.
		if err := v.syncLocked(); err != nil {
			v.lastErr = err
		}
	}
	return true
}

// IsVisited reports whether url may have been visited.
func (v *VisitedTracker) IsVisited(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter.TestString(url)
}

// Len returns the number of URLs recorded as new.
func (v *VisitedTracker) Len() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.added
}

func (v *VisitedTracker) syncLocked() error {
	data, err := v.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	copy(v.mmap, data)
	if err := v.mmap.Flush(); err != nil {
		return fmt.Errorf("flush mmap: %w", err)
	}
	v.pending = 0
	return nil
}

// Close flushes pending data and removes the backing file.
func (v *VisitedTracker) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var errs []error
	if v.lastErr != nil {
		errs = append(errs, v.lastErr)
	}
	if v.mmap != nil {
		if v.pending > 0 {
			if err := v.syncLocked(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := v.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		v.mmap = nil
	}
	if v.file != nil {
		if err := v.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		v.file = nil
	}
	if v.tmpPath != "" {
		if err := os.Remove(v.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove temp file: %w", err))
		}
		v.tmpPath = ""
	}

	if len(errs) > 0 {
		return fmt.Errorf("close visited tracker: %w", errors.Join(errs...))
	}
	return nil
}
