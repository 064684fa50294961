package connectivity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irrigation-node/internal/config"
)

// fakeStation comes up after upAfter polls once one of good is associated.
type fakeStation struct {
	good     map[string]bool
	upAfter  int
	failSSID map[string]bool

	associated []string
	current    string
	polls      int
	down       bool
}

func (s *fakeStation) Associate(_ context.Context, n config.Network) error {
	s.associated = append(s.associated, n.SSID)
	if s.failSSID[n.SSID] {
		return errors.New("radio refused")
	}
	s.current = n.SSID
	s.polls = 0
	s.down = false
	return nil
}

func (s *fakeStation) Connected(context.Context) bool {
	if s.down || !s.good[s.current] {
		return false
	}
	s.polls++
	return s.polls > s.upAfter
}

type fakeSource struct {
	offset time.Duration
	err    error
	calls  int
}

func (f *fakeSource) Offset(context.Context) (time.Duration, error) {
	f.calls++
	return f.offset, f.err
}

func nets(ssids ...string) []config.Network {
	out := make([]config.Network, len(ssids))
	for i, s := range ssids {
		out[i] = config.Network{SSID: s, Password: "pw-" + s}
	}
	return out
}

func newTestManager(st Station, src OffsetSource, networks []config.Network) *Manager {
	return NewManager(st, NewClock(src, time.Hour), Options{
		Networks:     networks,
		PollInterval: time.Millisecond,
		MaxPolls:     3,
	})
}

func TestConnect_FirstWorkingCandidateWins(t *testing.T) {
	st := &fakeStation{good: map[string]bool{"b": true, "c": true}, upAfter: 1}
	src := &fakeSource{}
	m := newTestManager(st, src, nets("a", "b", "c"))

	require.NoError(t, m.Connect(context.Background()))

	assert.Equal(t, []string{"a", "b"}, st.associated, "stops after the first success")
	assert.Equal(t, State{Connected: true, TimeSynchronized: true}, m.State())
	assert.Equal(t, 1, src.calls)
}

func TestConnect_AssociateErrorMovesOn(t *testing.T) {
	st := &fakeStation{good: map[string]bool{"b": true}, failSSID: map[string]bool{"a": true}}
	m := newTestManager(st, &fakeSource{}, nets("a", "b"))

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, []string{"a", "b"}, st.associated)
}

func TestConnect_ExhaustedListRunsOffline(t *testing.T) {
	st := &fakeStation{good: map[string]bool{}}
	src := &fakeSource{}
	m := newTestManager(st, src, nets("a", "b"))

	err := m.Connect(context.Background())

	require.ErrorIs(t, err, ErrNoNetwork)
	assert.Equal(t, State{}, m.State())
	assert.Zero(t, src.calls, "no time sync without a link")
}

func TestConnect_PollLimit(t *testing.T) {
	// Comes up on the fourth poll; only three are allowed.
	st := &fakeStation{good: map[string]bool{"a": true}, upAfter: 3}
	m := newTestManager(st, &fakeSource{}, nets("a"))

	require.ErrorIs(t, m.Connect(context.Background()), ErrNoNetwork)
	assert.Equal(t, 3, st.polls)
}

func TestConnect_NoCandidates(t *testing.T) {
	m := newTestManager(NewStaticStation(true), &fakeSource{}, nil)
	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.State().Connected)

	m = newTestManager(NewStaticStation(false), &fakeSource{}, nil)
	require.ErrorIs(t, m.Connect(context.Background()), ErrNoNetwork)
	assert.False(t, m.State().Connected)
}

func TestConnect_TimeSyncFailureStillConnected(t *testing.T) {
	st := &fakeStation{good: map[string]bool{"a": true}}
	m := newTestManager(st, &fakeSource{err: errors.New("udp timeout")}, nets("a"))

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, State{Connected: true, TimeSynchronized: false}, m.State())
}

func TestCheck_ReconnectsFromStartOfList(t *testing.T) {
	st := &fakeStation{good: map[string]bool{"a": true, "b": true}}
	m := newTestManager(st, &fakeSource{}, nets("a", "b"))
	require.NoError(t, m.Connect(context.Background()))

	require.NoError(t, m.Check(context.Background()))
	assert.Equal(t, []string{"a"}, st.associated, "healthy link is left alone")

	st.down = true
	st.good["a"] = false
	require.NoError(t, m.Check(context.Background()))
	assert.Equal(t, []string{"a", "a", "b"}, st.associated)
	assert.True(t, m.State().Connected)
}

func TestCheck_NeverConnectedRetries(t *testing.T) {
	st := &fakeStation{good: map[string]bool{}}
	m := newTestManager(st, &fakeSource{}, nets("a"))
	require.ErrorIs(t, m.Connect(context.Background()), ErrNoNetwork)

	st.good["a"] = true
	st.down = true
	require.NoError(t, m.Check(context.Background()))
	assert.True(t, m.State().Connected)
	assert.Equal(t, []string{"a", "a"}, st.associated)
}

func TestEnsureTime(t *testing.T) {
	src := &fakeSource{err: errors.New("unreachable")}
	st := &fakeStation{good: map[string]bool{"a": true}}
	m := newTestManager(st, src, nets("a"))

	// Offline: never queries.
	require.NoError(t, m.EnsureTime(context.Background()))
	assert.Zero(t, src.calls)

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 1, src.calls)

	require.Error(t, m.EnsureTime(context.Background()))
	assert.Equal(t, 2, src.calls)

	src.err = nil
	require.NoError(t, m.EnsureTime(context.Background()))
	assert.True(t, m.State().TimeSynchronized)

	// Already valid: no further queries.
	require.NoError(t, m.EnsureTime(context.Background()))
	assert.Equal(t, 3, src.calls)
}

func TestSyncTime_FailureClearsFlagKeepsOffset(t *testing.T) {
	src := &fakeSource{offset: 2 * time.Hour}
	m := newTestManager(NewStaticStation(true), src, nil)
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	m.clock.now = func() time.Time { return fixed }

	require.NoError(t, m.SyncTime(context.Background()))
	assert.True(t, m.State().TimeSynchronized)
	// 10:00 UTC + 2h correction + 1h zone.
	assert.Equal(t, 13, m.Clock().Hour())

	src.err = errors.New("gone")
	require.Error(t, m.SyncTime(context.Background()))
	assert.False(t, m.State().TimeSynchronized)
	assert.Equal(t, 13, m.Clock().Hour(), "stale offset stays in use")
}

func TestClock_FixedZone(t *testing.T) {
	c := NewClock(&fakeSource{}, -(5*time.Hour + 30*time.Minute))
	c.now = func() time.Time { return time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC) }

	assert.Equal(t, 21, c.Hour())
	name, off := c.Now().Zone()
	assert.Equal(t, "UTC-05:30", name)
	assert.Equal(t, -(5*3600 + 30*60), off)
	assert.True(t, c.LastSync().IsZero())
}

func TestNMCLIStation(t *testing.T) {
	var calls []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		if args[0] == "-t" {
			return []byte("eth0:ethernet:connected\nwlan0:wifi:connected\nlo:loopback:unmanaged\n"), nil
		}
		return nil, nil
	}
	s := NewNMCLIStationWithRunner("wlan0", run)

	require.NoError(t, s.Associate(context.Background(), config.Network{SSID: "home", Password: "secret"}))
	assert.True(t, s.Connected(context.Background()))
	assert.Equal(t, "nmcli --wait 0 device wifi connect home password secret ifname wlan0", calls[0])

	other := NewNMCLIStationWithRunner("wlan1", run)
	assert.False(t, other.Connected(context.Background()))
}

func TestNMCLIStation_Errors(t *testing.T) {
	run := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 10")
	}
	s := NewNMCLIStationWithRunner("", run)

	err := s.Associate(context.Background(), config.Network{SSID: "open"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"open"`)
	assert.False(t, s.Connected(context.Background()))
}
