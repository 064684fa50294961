package connectivity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

// OffsetSource returns how far the local clock is behind the reference clock.
type OffsetSource interface {
	Offset(ctx context.Context) (time.Duration, error)
}

// NTPSource queries a single NTP server.
type NTPSource struct {
	Server  string
	Timeout time.Duration
}

func (s NTPSource) Offset(ctx context.Context) (time.Duration, error) {
	timeout := s.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout || timeout == 0 {
			timeout = left
		}
	}
	if timeout <= 0 {
		return 0, context.DeadlineExceeded
	}

	resp, err := ntp.QueryWithOptions(s.Server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", s.Server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response from %s: %w", s.Server, err)
	}
	return resp.ClockOffset, nil
}

// Clock is wall time corrected by the last successful sync, in a fixed zone
// with no daylight saving. Before the first sync it trusts the system clock.
type Clock struct {
	src  OffsetSource
	zone *time.Location
	now  func() time.Time

	mu     sync.RWMutex
	offset time.Duration
	synced time.Time
}

func NewClock(src OffsetSource, utcOffset time.Duration) *Clock {
	return &Clock{
		src:  src,
		zone: time.FixedZone(zoneName(utcOffset), int(utcOffset/time.Second)),
		now:  time.Now,
	}
}

// Sync queries the source. On failure the previous offset stays in effect.
func (c *Clock) Sync(ctx context.Context) error {
	off, err := c.src.Offset(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.offset = off
	c.synced = c.now().Add(off)
	c.mu.Unlock()
	return nil
}

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	off := c.offset
	c.mu.RUnlock()
	return c.now().Add(off).In(c.zone)
}

// Hour is the local hour of day, 0..23.
func (c *Clock) Hour() int {
	return c.Now().Hour()
}

// LastSync is the corrected time of the last successful sync, zero if none.
func (c *Clock) LastSync() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.synced
}

func zoneName(off time.Duration) string {
	sign := "+"
	if off < 0 {
		sign = "-"
		off = -off
	}
	h := int(off / time.Hour)
	m := int((off % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%s%02d:%02d", sign, h, m)
}
