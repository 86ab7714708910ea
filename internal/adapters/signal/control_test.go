package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShonaLabs/ShonClub/internal/app"
	"github.com/ShonaLabs/ShonClub/internal/config"
	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/domain"
)

type fakeMedia struct {
	toggleErr   error
	toggleCalls int
	onToggle    func()
	stopped     []domain.Fid
}

func (f *fakeMedia) CreateTransport(domain.Fid) (*core.TransportDescriptor, error) {
	return &core.TransportDescriptor{ID: "transport-1"}, nil
}

func (f *fakeMedia) ConnectTransport(domain.Fid, string, core.TransportConnectParams) error {
	return nil
}

func (f *fakeMedia) HandleProducer(domain.Fid, string, core.RTPParameters) (string, error) {
	return "producer-1", nil
}

func (f *fakeMedia) CreateConsumer(domain.Fid, domain.Fid) (*core.ConsumerDescriptor, error) {
	return &core.ConsumerDescriptor{ConsumerID: "consumer-1", Kind: "audio"}, nil
}

func (f *fakeMedia) ToggleMute(_ domain.Fid, muted bool) (bool, error) {
	f.toggleCalls++
	if f.onToggle != nil {
		f.onToggle()
	}
	if f.toggleErr != nil {
		return false, f.toggleErr
	}
	return muted, nil
}

func (f *fakeMedia) StopBroadcasting(fid domain.Fid) {
	f.stopped = append(f.stopped, fid)
}

func newTestController(media core.MediaTransport) (*SignalWSController, *app.Registry) {
	reg := app.NewRegistry()
	ctl := NewSignalWSController(NewHub(), reg, media, &config.Config{})
	return ctl, reg
}

func connect(ctl *SignalWSController) *Client {
	c := newClient(nil)
	ctl.Hub.Register(c)
	return c
}

func recv(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case frame := <-c.send:
		var out map[string]any
		require.NoError(t, json.Unmarshal(frame, &out))
		return out
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected an outbound event, got none")
		return nil
	}
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("expected no outbound event, got %s", frame)
	default:
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func authenticate(t *testing.T, ctl *SignalWSController, c *Client, fid string) {
	t.Helper()
	ctl.handleSignal(c, []byte(fmt.Sprintf(`{"type":"authenticate","fid":%q}`, fid)))
	resp := recv(t, c)
	require.Equal(t, "authenticated", resp["type"])
	require.Equal(t, true, resp["success"])
}

func createRoom(t *testing.T, ctl *SignalWSController, c *Client, name string) domain.RoomID {
	t.Helper()
	ctl.handleSignal(c, []byte(fmt.Sprintf(`{"type":"create-room","name":%q}`, name)))
	resp := recv(t, c)
	require.Equal(t, "joined-room", resp["type"])
	require.Equal(t, "host", resp["role"])
	room := resp["room"].(map[string]any)
	drain(c) // room-created goes to everyone, caller included
	return domain.RoomID(room["id"].(string))
}

func joinRoom(t *testing.T, ctl *SignalWSController, c *Client, id domain.RoomID) {
	t.Helper()
	ctl.handleSignal(c, []byte(fmt.Sprintf(`{"type":"join-room","room":%q}`, string(id))))
}

func TestUnauthenticatedEventsSilentlyDropped(t *testing.T) {
	ctl, reg := newTestController(nil)
	c := connect(ctl)

	ctl.handleSignal(c, []byte(`{"type":"create-room","name":"sneaky"}`))
	ctl.handleSignal(c, []byte(`{"type":"raise-hand"}`))

	expectSilence(t, c)
	assert.Empty(t, reg.ListRooms())
}

func TestPingBeforeAuthentication(t *testing.T) {
	ctl, _ := newTestController(nil)
	c := connect(ctl)

	ctl.handleSignal(c, []byte(`{"type":"ping"}`))
	resp := recv(t, c)
	assert.Equal(t, "pong", resp["type"])
}

func TestAuthenticateRejectsEmptyIdentity(t *testing.T) {
	ctl, _ := newTestController(nil)
	c := connect(ctl)

	ctl.handleSignal(c, []byte(`{"type":"authenticate","fid":""}`))
	resp := recv(t, c)
	assert.Equal(t, "error", resp["type"])
}

func TestCreateRoomAnnouncedGlobally(t *testing.T) {
	ctl, reg := newTestController(nil)
	host := connect(ctl)
	bystander := connect(ctl)
	authenticate(t, ctl, host, "host-a")

	ctl.handleSignal(host, []byte(`{"type":"create-room","name":"go night","tags":["golang"]}`))

	joined := recv(t, host)
	require.Equal(t, "joined-room", joined["type"])
	assert.Equal(t, "host", joined["role"])
	room := joined["room"].(map[string]any)
	assert.Equal(t, "host-a", room["hostFid"])
	assert.Equal(t, []any{"host-a"}, room["speakers"])

	announced := recv(t, bystander)
	assert.Equal(t, "room-created", announced["type"])

	require.Len(t, reg.ListRooms(), 1)
}

func TestCreateRoomEmptyNameRejected(t *testing.T) {
	ctl, reg := newTestController(nil)
	c := connect(ctl)
	authenticate(t, ctl, c, "host-a")

	ctl.handleSignal(c, []byte(`{"type":"create-room","name":""}`))
	resp := recv(t, c)
	assert.Equal(t, "error", resp["type"])
	assert.Empty(t, reg.ListRooms())
}

func TestJoinRoomNotifiesMembers(t *testing.T) {
	ctl, _ := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "meetup")
	drain(guest)

	joinRoom(t, ctl, guest, roomID)

	joined := recv(t, guest)
	require.Equal(t, "joined-room", joined["type"])
	assert.Equal(t, "listener", joined["role"])

	notified := recv(t, host)
	assert.Equal(t, "user-joined", notified["type"])
	assert.Equal(t, "guest-1", notified["identity"])
}

func TestJoinMissingRoomSilentlyDropped(t *testing.T) {
	ctl, _ := newTestController(nil)
	c := connect(ctl)
	authenticate(t, ctl, c, "guest-1")

	joinRoom(t, ctl, c, "no-such-room")
	expectSilence(t, c)
	assert.Equal(t, domain.RoomID(""), c.Room())
}

func TestRejoinAsSpeakerKeepsRole(t *testing.T) {
	ctl, reg := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "stage")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	reg.AddSpeaker(roomID, "guest-1")

	joinRoom(t, ctl, guest, roomID)
	joined := recv(t, guest)
	require.Equal(t, "joined-room", joined["type"])
	assert.Equal(t, "speaker", joined["role"])
}

func TestPromoteByNonHostRejected(t *testing.T) {
	ctl, reg := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "gatekeeping")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleSignal(guest, []byte(`{"type":"promote-to-speaker","identity":"guest-1"}`))

	resp := recv(t, guest)
	assert.Equal(t, "error", resp["type"])

	snap, _ := reg.GetRoom(roomID)
	assert.NotContains(t, snap.Speakers, "guest-1")
	expectSilence(t, host)
}

func TestPromoteAndDemoteByHost(t *testing.T) {
	ctl, reg := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "stage")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleSignal(host, []byte(`{"type":"promote-to-speaker","identity":"guest-1"}`))
	promoted := recv(t, guest)
	assert.Equal(t, "user-promoted", promoted["type"])
	assert.Equal(t, "guest-1", promoted["identity"])
	assert.True(t, reg.IsSpeaker(roomID, "guest-1"))
	drain(host)

	ctl.handleSignal(host, []byte(`{"type":"demote-speaker","identity":"guest-1"}`))
	demoted := recv(t, guest)
	assert.Equal(t, "user-demoted", demoted["type"])
	assert.False(t, reg.IsSpeaker(roomID, "guest-1"))
}

func TestRaiseAndLowerHand(t *testing.T) {
	ctl, reg := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "q&a")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleSignal(guest, []byte(`{"type":"raise-hand"}`))
	raised := recv(t, host)
	assert.Equal(t, "hand-raised", raised["type"])
	assert.Equal(t, "guest-1", raised["identity"])
	snap, _ := reg.GetRoom(roomID)
	assert.Contains(t, snap.RaisedHands, "guest-1")
	drain(guest)

	ctl.handleSignal(guest, []byte(`{"type":"lower-hand"}`))
	lowered := recv(t, host)
	assert.Equal(t, "hand-lowered", lowered["type"])
	snap, _ = reg.GetRoom(roomID)
	assert.Empty(t, snap.RaisedHands)
}

func TestReactionInvalidTypeRejected(t *testing.T) {
	ctl, _ := newTestController(nil)
	host := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	createRoom(t, ctl, host, "hype")

	ctl.handleSignal(host, []byte(`{"type":"send-reaction","reaction":"yeet"}`))
	resp := recv(t, host)
	assert.Equal(t, "error", resp["type"])
}

func TestReactionBroadcast(t *testing.T) {
	ctl, _ := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "hype")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleSignal(guest, []byte(`{"type":"send-reaction","reaction":"clap"}`))

	got := recv(t, host)
	require.Equal(t, "reaction-received", got["type"])
	reaction := got["reaction"].(map[string]any)
	assert.Equal(t, "clap", reaction["type"])
	assert.Equal(t, "guest-1", reaction["fid"])
	assert.NotZero(t, reaction["timestamp"])
}

func TestToggleMuteWithoutProducer(t *testing.T) {
	fm := &fakeMedia{toggleErr: errors.New("Producer not found")}
	ctl, _ := newTestController(fm)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "silence")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleSignal(host, []byte(`{"type":"toggle-mute","muted":true}`))

	resp := recv(t, host)
	require.Equal(t, "error", resp["type"])
	assert.Equal(t, "Producer not found", resp["error"])
	expectSilence(t, guest)
}

func TestToggleMuteByListenerRejected(t *testing.T) {
	fm := &fakeMedia{}
	ctl, _ := newTestController(fm)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "stage")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleSignal(guest, []byte(`{"type":"toggle-mute","muted":true}`))

	resp := recv(t, guest)
	assert.Equal(t, "error", resp["type"])
	assert.Zero(t, fm.toggleCalls, "media layer must not be reached")
}

func TestToggleMuteBroadcastsToRoom(t *testing.T) {
	fm := &fakeMedia{}
	ctl, _ := newTestController(fm)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "stage")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleSignal(host, []byte(`{"type":"toggle-mute","muted":true}`))

	got := recv(t, guest)
	require.Equal(t, "user-muted", got["type"])
	assert.Equal(t, "host-a", got["identity"])
	assert.Equal(t, true, got["muted"])
}

func TestToggleMuteResultDroppedAfterUnbind(t *testing.T) {
	fm := &fakeMedia{}
	ctl, _ := newTestController(fm)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "stage")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	// Session loses its binding while the media call is in flight; the
	// result must not be announced to the room it no longer holds.
	fm.onToggle = func() { host.bind("") }

	ctl.handleSignal(host, []byte(`{"type":"toggle-mute","muted":true}`))

	require.Equal(t, 1, fm.toggleCalls)
	expectSilence(t, guest)
	expectSilence(t, host)
}

func TestDemoteNonSpeakerNotAnnounced(t *testing.T) {
	ctl, _ := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "stage")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	// guest-1 is a listener; a demotion changes nothing and nothing is
	// announced. Same for demoting the host.
	ctl.handleSignal(host, []byte(`{"type":"demote-speaker","identity":"guest-1"}`))
	ctl.handleSignal(host, []byte(`{"type":"demote-speaker","identity":"host-a"}`))

	expectSilence(t, guest)
	expectSilence(t, host)
}

func TestPromoteSpeakerAgainNotAnnounced(t *testing.T) {
	ctl, reg := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "stage")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)
	reg.AddSpeaker(roomID, "guest-1")

	ctl.handleSignal(host, []byte(`{"type":"promote-to-speaker","identity":"guest-1"}`))

	expectSilence(t, guest)
	expectSilence(t, host)
}

func TestJoinClosedRoomKeepsBinding(t *testing.T) {
	ctl, reg := newTestController(nil)
	hostA := connect(ctl)
	hostB := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, hostA, "host-a")
	authenticate(t, ctl, hostB, "host-b")
	authenticate(t, ctl, guest, "guest-1")
	roomA := createRoom(t, ctl, hostA, "first")
	drain(hostB)
	drain(guest)
	roomB := createRoom(t, ctl, hostB, "second")
	drain(hostA)
	drain(guest)
	joinRoom(t, ctl, guest, roomA)
	drain(guest)
	drain(hostA)

	// roomB closes just before the join lands; the failed join must leave
	// the session bound to roomA with its membership intact.
	reg.CloseRoom(roomB)
	joinRoom(t, ctl, guest, roomB)

	expectSilence(t, guest)
	expectSilence(t, hostA)
	assert.Equal(t, roomA, guest.Room())
	snapA, _ := reg.GetRoom(roomA)
	assert.Contains(t, snapA.Listeners, "guest-1")
}

func TestHostDisconnectClosesRoom(t *testing.T) {
	fm := &fakeMedia{}
	ctl, reg := newTestController(fm)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "ephemeral")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleDisconnect(host)

	closed := recv(t, guest)
	assert.Equal(t, "room-closed", closed["type"])
	assert.Equal(t, string(roomID), closed["room"])

	snap, ok := reg.GetRoom(roomID)
	require.True(t, ok)
	assert.False(t, snap.Active)
	assert.Equal(t, []domain.Fid{"host-a"}, fm.stopped)
}

func TestMemberDisconnectAnnouncesLeave(t *testing.T) {
	fm := &fakeMedia{}
	ctl, reg := newTestController(fm)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomID := createRoom(t, ctl, host, "still here")
	drain(guest)
	joinRoom(t, ctl, guest, roomID)
	drain(guest)
	drain(host)

	ctl.handleDisconnect(guest)

	left := recv(t, host)
	assert.Equal(t, "user-left", left["type"])
	assert.Equal(t, "guest-1", left["identity"])

	snap, _ := reg.GetRoom(roomID)
	assert.True(t, snap.Active)
	assert.Equal(t, []domain.Fid{"guest-1"}, fm.stopped)
}

func TestRebindReleasesPriorRoom(t *testing.T) {
	ctl, reg := newTestController(nil)
	hostA := connect(ctl)
	hostB := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, hostA, "host-a")
	authenticate(t, ctl, hostB, "host-b")
	authenticate(t, ctl, guest, "guest-1")
	roomA := createRoom(t, ctl, hostA, "first")
	drain(hostB)
	drain(guest)
	roomB := createRoom(t, ctl, hostB, "second")
	drain(hostA)
	drain(guest)
	joinRoom(t, ctl, guest, roomA)
	drain(guest)
	drain(hostA)

	joinRoom(t, ctl, guest, roomB)

	left := recv(t, hostA)
	assert.Equal(t, "user-left", left["type"])
	assert.Equal(t, "guest-1", left["identity"])

	snapA, _ := reg.GetRoom(roomA)
	assert.NotContains(t, snapA.Listeners, "guest-1")
	snapB, _ := reg.GetRoom(roomB)
	assert.Contains(t, snapB.Listeners, "guest-1")
	assert.Equal(t, roomB, guest.Room())
}

func TestHostRebindClosesPriorRoom(t *testing.T) {
	ctl, reg := newTestController(nil)
	host := connect(ctl)
	guest := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	authenticate(t, ctl, guest, "guest-1")
	roomA := createRoom(t, ctl, host, "first")
	drain(guest)
	joinRoom(t, ctl, guest, roomA)
	drain(guest)
	drain(host)

	roomB := createRoom(t, ctl, host, "second")

	closed := recv(t, guest)
	assert.Equal(t, "room-closed", closed["type"])
	assert.Equal(t, string(roomA), closed["room"])

	snapA, _ := reg.GetRoom(roomA)
	assert.False(t, snapA.Active)
	snapB, _ := reg.GetRoom(roomB)
	assert.True(t, snapB.Active)
}

func TestMediaEventsWithoutEngine(t *testing.T) {
	ctl, _ := newTestController(nil)
	host := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	createRoom(t, ctl, host, "no media")

	ctl.handleSignal(host, []byte(`{"type":"create-transport"}`))
	resp := recv(t, host)
	require.Equal(t, "error", resp["type"])
	assert.Equal(t, "Media router not initialized", resp["error"])
}

func TestCreateTransportRoundTrip(t *testing.T) {
	fm := &fakeMedia{}
	ctl, _ := newTestController(fm)
	host := connect(ctl)
	authenticate(t, ctl, host, "host-a")
	createRoom(t, ctl, host, "wired")

	ctl.handleSignal(host, []byte(`{"type":"create-transport"}`))
	resp := recv(t, host)
	require.Equal(t, "transport-created", resp["type"])
	transport := resp["transport"].(map[string]any)
	assert.Equal(t, "transport-1", transport["id"])
}
