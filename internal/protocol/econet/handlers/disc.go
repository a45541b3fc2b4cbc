package handlers

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/session"
)

// diskUsage reports free and total space in 1K blocks for the filesystem
// backing root, for READ-FREE.
func diskUsage(root string) (freeKB, totalKB int64) {
	var st unix.Statfs_t
	if err := unix.Statfs(root, &st); err != nil {
		return 0, 0
	}
	blockKB := int64(st.Bsize) / 1024
	if blockKB == 0 {
		blockKB = 1
	}
	return int64(st.Bavail) * blockKB, int64(st.Blocks) * blockKB
}

// serverVersion is the READ-VERSION reply text.
const serverVersion = "EFSD 1.00"

// handleReadDiscs implements fsop READ-DISCS: a count byte followed by
// fixed-width disc-number/name pairs.
func (s *Server) handleReadDiscs(_ *session.Session, _ *econet.Request) []byte {
	discs := s.Discs.All()
	out := []byte{byte(len(discs))}
	for _, d := range discs {
		out = append(out, byte(d.Index))
		out = append(out, []byte(padName(d.Name, 16))...)
	}
	return econet.Success(0x00, out...)
}

// handleReadUsersLoggedOn implements fsop READ-USERS-LOGGED-ON: a count
// byte followed by fixed-width username fields for every active session.
func (s *Server) handleReadUsersLoggedOn(_ *session.Session, _ *econet.Request) []byte {
	all := s.Sessions.All()
	out := []byte{byte(len(all))}
	for _, sess := range all {
		out = append(out, []byte(padName(sess.Username, 10))...)
	}
	return econet.Success(0x00, out...)
}

// handleReadTime implements fsop READ-TIME: the server's current time as a
// literal HH:MM:SS string, followed by day, month and years-since-1900
// bytes.
func (s *Server) handleReadTime(_ *session.Session, _ *econet.Request) []byte {
	now := nowUTC()
	clock := now.Format("15:04:05")
	out := []byte(clock)
	out = append(out, byte(now.Day()), byte(now.Month()), byte(now.Year()-1900))
	return econet.Success(0x00, out...)
}

// handleReadVersion implements fsop READ-VERSION.
func (s *Server) handleReadVersion(_ *session.Session, _ *econet.Request) []byte {
	return econet.Success(0x00, []byte(serverVersion)...)
}

// handleReadFree implements fsop READ-FREE: free/total space on the
// current session's disc, in 1K blocks.
func (s *Server) handleReadFree(sess *session.Session, _ *econet.Request) []byte {
	disc, ok := s.Discs.ByName(sess.DiscName)
	if !ok {
		return econet.Error(econet.ErrBadDir, "no such disc")
	}
	free, total := diskUsage(disc.Root)
	return econet.Success(0x00,
		byte(free), byte(free>>8), byte(free>>16),
		byte(total), byte(total>>8), byte(total>>16),
	)
}

// handleReadUserEnv implements fsop READ-USER-ENV: the session's disc
// name, current directory tail, and privilege byte.
func (s *Server) handleReadUserEnv(sess *session.Session, _ *econet.Request) []byte {
	curHandle := sess.Handles.Get(sess.CurrentHandle)
	tail := "$"
	if curHandle != nil {
		if i := strings.LastIndexByte(curHandle.DottedPath, '.'); i >= 0 {
			tail = curHandle.DottedPath[i+1:]
		}
	}
	out := []byte(padName(sess.DiscName, 10))
	out = append(out, []byte(padName(tail, 10))...)
	out = append(out, byte(sess.Privilege))
	return econet.Success(0x00, out...)
}

// handleReadUserInfo implements fsop READ-USER-INFO: looks up a username
// argument and reports its privilege and boot option.
func (s *Server) handleReadUserInfo(sess *session.Session, req *econet.Request) []byte {
	username := strings.TrimSpace(string(req.Args))
	if username == "" {
		username = sess.Username
	}
	u, found, err := s.Users.FindByUsername(username)
	if err != nil || !found {
		return econet.Error(econet.ErrNoSuchUser, "no such user")
	}
	return econet.Success(0x00, byte(u.Privilege), byte(u.BootOpt))
}

// handleSetBootOpt implements fsop SET-BOOTOPT: persist a new boot option
// for the logged-in user.
func (s *Server) handleSetBootOpt(sess *session.Session, req *econet.Request) []byte {
	if len(req.Args) < 1 {
		return econet.Error(econet.ErrBadCommand, "missing boot option")
	}
	sess.BootOpt = econet.BootOption(req.Args[0])
	u, err := s.Users.Get(sess.UserID)
	if err != nil {
		return econet.Error(econet.ErrGeneric, "user lookup failed")
	}
	u.BootOpt = sess.BootOpt
	if err := s.Users.Put(u); err != nil {
		return econet.Error(econet.ErrGeneric, "persist failed")
	}
	return econet.Success(0x00)
}
