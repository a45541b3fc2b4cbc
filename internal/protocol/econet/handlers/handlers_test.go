package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/bulk"
	"github.com/econet-fs/efsd/internal/interlock"
	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
)

// memAttrs is a minimal in-memory attrs.Store, avoiding a dependency on
// real xattr support in the test sandbox.
type memAttrs struct{ m map[string]attrs.Attrs }

func newMemAttrs() *memAttrs { return &memAttrs{m: make(map[string]attrs.Attrs)} }

func (s *memAttrs) Read(path string) attrs.Attrs {
	if a, ok := s.m[path]; ok {
		return a
	}
	return attrs.Default
}
func (s *memAttrs) Write(path string, a attrs.Attrs) error {
	s.m[path] = a
	return nil
}
func (s *memAttrs) Remove(path string) error {
	delete(s.m, path)
	return nil
}
func (s *memAttrs) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, econet.Station) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "0DISC0"), 0o755))

	discs := resolver.NewDiscs()
	require.NoError(t, discs.Add(resolver.Disc{Index: 0, Name: "DISC0", Root: filepath.Join(root, "0DISC0")}))

	users, err := session.OpenUserStore(filepath.Join(root, "Passwords"))
	require.NoError(t, err)
	id, err := users.AllocateSlot()
	require.NoError(t, err)
	require.NoError(t, users.Put(session.User{
		ID:        id,
		Username:  "SYST",
		Password:  "",
		Privilege: session.PrivSystem | session.PrivUser,
		Home:      "$",
		Library:   "$",
		HomeDisc:  0,
	}))

	s := New(session.NewManager(), users, discs, resolver.New(discs, newMemAttrs()), interlock.New(), bulk.New(), false)
	s.DefaultDiscIndex = 0
	return s, econet.Station{Net: 0, Stn: 1}
}

func login(t *testing.T, s *Server, station econet.Station) *session.Session {
	t.Helper()
	reply := s.dispatchOSCLI(station, nil, &econet.Request{Station: station, Args: []byte("I AM SYST")})
	require.Equal(t, byte(LoginEcho), reply[0])
	require.Equal(t, byte(0x00), reply[1])
	sess, ok := s.Sessions.Get(station)
	require.True(t, ok)
	return sess
}

// TestLoginAllocatesDistinctAnchorHandles covers scenario S1.
func TestLoginAllocatesDistinctAnchorHandles(t *testing.T) {
	s, station := newTestServer(t)
	sess := login(t, s, station)
	require.NotZero(t, sess.RootHandle)
	require.NotZero(t, sess.CurrentHandle)
	require.NotZero(t, sess.LibraryHandle)
}

// TestSaveThenLoadRoundTrip covers scenario S2: a SAVE registers
// a bulk context, streaming the body through DispatchBulk completes it and
// writes the file, and a subsequent LOAD reads it back unchanged.
func TestSaveThenLoadRoundTrip(t *testing.T) {
	s, station := newTestServer(t)
	sess := login(t, s, station)

	saveArgs := []byte("0000190000008023" + "00000005 TEST")
	saveReply := s.handleSave(sess, &econet.Request{Station: station, CurrentHandle: byte(sess.CurrentHandle), Args: saveArgs})
	require.Equal(t, byte(0x00), saveReply[1])
	port := saveReply[2]

	ack, complete := s.DispatchBulk(port, []byte("HELLO"))
	require.True(t, complete)
	require.Len(t, ack, 3) // {perm, day, month-year}

	loadReply := s.handleLoad(sess, &econet.Request{Station: station, CurrentHandle: byte(sess.CurrentHandle), Args: []byte("TEST")}, false)
	require.Equal(t, byte(0x00), loadReply[1])
	loadPort := loadReply[len(loadReply)-1]

	ctx, ok := s.Bulk.Get(loadPort)
	require.True(t, ok)
	require.Equal(t, []byte("HELLO"), ctx.Data)
}

// TestInterlockContentionRejectsConcurrentWriter covers scenario S3.
func TestInterlockContentionRejectsConcurrentWriter(t *testing.T) {
	s, stationA := newTestServer(t)
	sessA := login(t, s, stationA)

	stationB := econet.Station{Net: 0, Stn: 2}
	sessB := login(t, s, stationB)

	openReplyA := s.handleOpen(sessA, &econet.Request{CurrentHandle: byte(sessA.CurrentHandle), Args: []byte{0, 0, 'F', 'O', 'O'}})
	require.Equal(t, byte(0x00), openReplyA[1])

	openReplyB := s.handleOpen(sessB, &econet.Request{CurrentHandle: byte(sessB.CurrentHandle), Args: []byte{1, 1, 'F', 'O', 'O'}})
	require.Equal(t, econet.ErrAlreadyOpen, econet.ErrCode(openReplyB[1]))
}

// TestDeleteNonEmptyDirFails covers scenario S5.
func TestDeleteNonEmptyDirFails(t *testing.T) {
	s, station := newTestServer(t)
	sess := login(t, s, station)

	cdirReply := s.oscliCDir(station, sess, nil, "D")
	require.Equal(t, byte(0x00), cdirReply[1])

	saveReply := s.handleSave(sess, &econet.Request{Station: station, CurrentHandle: byte(sess.CurrentHandle), Args: []byte("00000000" + "00000000" + "00000001 D.F")})
	require.Equal(t, byte(0x00), saveReply[1])
	_, complete := s.DispatchBulk(saveReply[2], []byte("x"))
	require.True(t, complete)

	failReply := s.oscliDelete(station, sess, nil, "D")
	require.NotEqual(t, byte(0x00), failReply[1])

	require.Equal(t, byte(0x00), s.oscliDelete(station, sess, nil, "D.F")[1])
	require.Equal(t, byte(0x00), s.oscliDelete(station, sess, nil, "D")[1])
}

// TestGetBytePastEOFSequence covers scenario S6.
func TestGetBytePastEOFSequence(t *testing.T) {
	s, station := newTestServer(t)
	sess := login(t, s, station)

	saveReply := s.handleSave(sess, &econet.Request{Station: station, CurrentHandle: byte(sess.CurrentHandle), Args: []byte("00000000" + "00000000" + "00000003 F")})
	_, complete := s.DispatchBulk(saveReply[2], []byte("abc"))
	require.True(t, complete)

	openReply := s.handleOpen(sess, &econet.Request{CurrentHandle: byte(sess.CurrentHandle), Args: []byte{1, 1, 'F'}})
	require.Equal(t, byte(0x00), openReply[1])
	handle := openReply[2]

	r1 := s.handleGetByte(sess, &econet.Request{Args: []byte{handle}})
	require.Equal(t, []byte{'a', 0x00}, r1[2:])
	r2 := s.handleGetByte(sess, &econet.Request{Args: []byte{handle}})
	require.Equal(t, []byte{'b', 0x00}, r2[2:])
	r3 := s.handleGetByte(sess, &econet.Request{Args: []byte{handle}})
	require.Equal(t, []byte{'c', 0x80}, r3[2:])
	r4 := s.handleGetByte(sess, &econet.Request{Args: []byte{handle}})
	require.Equal(t, []byte{0xFE, 0xC0}, r4[2:])
	r5 := s.handleGetByte(sess, &econet.Request{Args: []byte{handle}})
	require.Equal(t, econet.ErrEOF, econet.ErrCode(r5[1]))
}

// TestPutByteDuplicateControlBitIsNoOp covers invariant 6: a
// PUTBYTE whose low control bit matches the handle's stored sequence bit
// never advances the cursor, and the sequence bit always ends up equal to
// the request's low control bit.
func TestPutByteDuplicateControlBitIsNoOp(t *testing.T) {
	s, station := newTestServer(t)
	sess := login(t, s, station)

	saveReply := s.handleSave(sess, &econet.Request{Station: station, CurrentHandle: byte(sess.CurrentHandle), Args: []byte("00000000" + "00000000" + "00000002 F")})
	_, complete := s.DispatchBulk(saveReply[2], []byte("xx"))
	require.True(t, complete)

	openReply := s.handleOpen(sess, &econet.Request{CurrentHandle: byte(sess.CurrentHandle), Args: []byte{1, 0, 'F'}})
	require.Equal(t, byte(0x00), openReply[1])
	handle := openReply[2]

	first := s.handlePutByte(sess, &econet.Request{Args: []byte{handle, 0x01, 'A'}})
	require.Equal(t, byte(0x00), first[1])
	h := sess.Handles.Get(int(handle))
	require.Equal(t, int64(1), h.Cursor)
	require.Equal(t, byte(0x01), h.SequenceBit)

	dup := s.handlePutByte(sess, &econet.Request{Args: []byte{handle, 0x01, 'Z'}})
	require.Equal(t, byte(0x00), dup[1])
	require.Equal(t, int64(1), h.Cursor)
	require.Equal(t, byte(0x01), h.SequenceBit)

	second := s.handlePutByte(sess, &econet.Request{Args: []byte{handle, 0x00, 'B'}})
	require.Equal(t, byte(0x00), second[1])
	require.Equal(t, int64(2), h.Cursor)
	require.Equal(t, byte(0x00), h.SequenceBit)
}

// TestRenameRefusesExistingDestination covers scenario S7.
func TestRenameRefusesExistingDestination(t *testing.T) {
	s, station := newTestServer(t)
	sess := login(t, s, station)

	for _, name := range []string{"A", "B"} {
		saveReply := s.handleSave(sess, &econet.Request{Station: station, CurrentHandle: byte(sess.CurrentHandle), Args: []byte("00000000" + "00000000" + "00000001 " + name)})
		_, complete := s.DispatchBulk(saveReply[2], []byte("x"))
		require.True(t, complete)
	}

	renameReply := s.oscliRename(station, sess, nil, "A B")
	require.NotEqual(t, byte(0x00), renameReply[1])

	res, resolveErr := s.resolvePath(sess, "A", byte(sess.CurrentHandle), false)
	require.NoError(t, resolveErr)
	require.Equal(t, resolver.File, res.Type)
}
