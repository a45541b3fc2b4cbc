package handlers

import (
	"sort"
	"strings"

	"github.com/econet-fs/efsd/internal/protocol/econet"
	"github.com/econet-fs/efsd/internal/resolver"
	"github.com/econet-fs/efsd/internal/session"
)

// LoginEcho is the command-echo byte a successful "I AM"/"IAM"/"LOGIN"
// returns.
const LoginEcho = 0x05

type oscliVerb struct {
	aliases    []string
	systemOnly bool
	needsLogin bool
	handler    func(s *Server, station econet.Station, sess *session.Session, req *econet.Request, args string) []byte
}

// oscliTable lists every recognised OSCLI verb and its fsop mapping or
// inline handler. Aliases are
// the exact dual spellings the original accepts (e.g. "RENAME"/"REN."),
// not a generic shortest-unambiguous-prefix scheme.
var oscliTable = []oscliVerb{
	{aliases: []string{"I AM", "IAM", "LOGIN"}, handler: (*Server).oscliLogin},
	{aliases: []string{"BYE"}, needsLogin: true, handler: func(s *Server, _ econet.Station, sess *session.Session, req *econet.Request, _ string) []byte {
		return s.handleBye(sess, req)
	}},
	{aliases: []string{"SETLIB"}, needsLogin: true, handler: (*Server).oscliSetLib},
	{aliases: []string{"PASS"}, needsLogin: true, handler: (*Server).oscliPass},
	{aliases: []string{"CHOWN"}, needsLogin: true, handler: (*Server).oscliChown},
	{aliases: []string{"OWNER"}, needsLogin: true, handler: (*Server).oscliChown},
	{aliases: []string{"ACCESS"}, needsLogin: true, handler: (*Server).oscliAccess},
	{aliases: []string{"INFO", "I."}, needsLogin: true, handler: (*Server).oscliInfo},
	{aliases: []string{"CDIR"}, needsLogin: true, handler: (*Server).oscliCDir},
	{aliases: []string{"DELETE"}, needsLogin: true, handler: (*Server).oscliDelete},
	{aliases: []string{"RENAME", "REN."}, needsLogin: true, handler: (*Server).oscliRename},
	{aliases: []string{"SDISC"}, needsLogin: true, handler: (*Server).oscliSDisc},
	{aliases: []string{"COPY"}, needsLogin: true, handler: (*Server).oscliCopy},
	{aliases: []string{"LIB"}, needsLogin: true, handler: (*Server).oscliLib},
	{aliases: []string{"DIR"}, needsLogin: true, handler: (*Server).oscliDir},
	{aliases: []string{"SETHOME"}, needsLogin: true, systemOnly: true, handler: (*Server).oscliSetHome},
	{aliases: []string{"LINK"}, needsLogin: true, systemOnly: true, handler: (*Server).oscliLink},
	{aliases: []string{"FLOG"}, needsLogin: true, systemOnly: true, handler: (*Server).oscliFlog},
	{aliases: []string{"NEWUSER"}, needsLogin: true, systemOnly: true, handler: (*Server).oscliNewUser},
	{aliases: []string{"PRIV"}, needsLogin: true, systemOnly: true, handler: (*Server).oscliPriv},
}

func init() {
	// Longer aliases first, so e.g. "I AM" is tried before "I." would ever
	// have a chance to shadow it (it can't today, but keep the ordering
	// invariant explicit for future verbs).
	sort.Slice(oscliTable, func(i, j int) bool {
		return len(oscliTable[i].aliases[0]) > len(oscliTable[j].aliases[0])
	})
}

func matchVerb(cmd string) (*oscliVerb, string, bool) {
	upper := strings.ToUpper(cmd)
	for i := range oscliTable {
		v := &oscliTable[i]
		for _, alias := range v.aliases {
			if strings.HasPrefix(upper, alias) {
				return v, strings.TrimSpace(cmd[len(alias):]), true
			}
		}
	}
	return nil, "", false
}

// dispatchOSCLI implements fsop 0: decode a textual command
// and route it to the matching verb handler.
func (s *Server) dispatchOSCLI(station econet.Station, sess *session.Session, req *econet.Request) []byte {
	cmd := strings.TrimRight(strings.TrimSpace(string(req.Args)), "\x00\r")
	verb, rest, ok := matchVerb(cmd)
	if !ok {
		return econet.Error(econet.ErrBadCommand, "bad command")
	}
	if verb.needsLogin && sess == nil {
		return econet.Error(econet.ErrWhoAreYou, "who are you?")
	}
	if verb.systemOnly && !sess.Privilege.IsSystem() {
		return econet.Error(econet.ErrInsufficientPriv, "insufficient privilege")
	}
	return verb.handler(s, station, sess, req, rest)
}

// oscliLogin implements "I AM"/"IAM"/"LOGIN".
func (s *Server) oscliLogin(station econet.Station, _ *session.Session, req *econet.Request, args string) []byte {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return econet.Error(econet.ErrNoSuchUser, "no username given")
	}
	username := fields[0]
	password := ""
	if len(fields) > 1 {
		password = fields[1]
	}

	u, found, err := s.Users.FindByUsername(username)
	if err != nil {
		return econet.ErrorReply(err)
	}
	if !found || !session.PasswordEquals(u.Password, password) {
		return econet.Error(econet.ErrNoSuchUser, "wrong password")
	}
	if u.Privilege.IsLocked() {
		return econet.Error(econet.ErrNoSuchUser, "account locked")
	}

	homeDisc, ok := s.Discs.ByIndex(int(u.HomeDisc))
	if !ok {
		return econet.Error(econet.ErrBadDir, "bad root")
	}

	newSess := &session.Session{
		Station:   station,
		UserID:    u.ID,
		Username:  u.Username,
		Privilege: u.Privilege,
		BootOpt:   u.BootOpt,
		DiscName:  homeDisc.Name,
		LoggedOn:  nowUTC(),
	}

	rootRes, err := s.Resolver.Resolve(u.Privilege.IsSystem(), uint16(u.ID), "$", nil, &homeDisc, false)
	if err != nil {
		return econet.Error(econet.ErrBadDir, "bad root")
	}
	rootHandle, err := newSess.Handles.Allocate(resolutionToDirHandle(rootRes))
	if err != nil {
		return econet.ErrorReply(err)
	}
	newSess.RootHandle = rootHandle

	homeRes, err := s.Resolver.Resolve(u.Privilege.IsSystem(), uint16(u.ID), u.Home, nil, &homeDisc, false)
	if err != nil || homeRes.Type != resolver.Directory {
		homeRes = rootRes
	}
	curHandle, err := newSess.Handles.Allocate(resolutionToDirHandle(homeRes))
	if err != nil {
		return econet.ErrorReply(err)
	}
	newSess.CurrentHandle = curHandle

	libRes, err := s.Resolver.Resolve(u.Privilege.IsSystem(), uint16(u.ID), u.Library, nil, &homeDisc, false)
	if err != nil || libRes.Type != resolver.Directory {
		libRes = rootRes
	}
	libHandle, err := newSess.Handles.Allocate(resolutionToDirHandle(libRes))
	if err != nil {
		return econet.ErrorReply(err)
	}
	newSess.LibraryHandle = libHandle

	if displaced := s.Sessions.Replace(newSess); displaced != nil {
		s.closeSession(displaced)
	}

	return econet.Success(LoginEcho, rootHandle, curHandle, libHandle, byte(u.BootOpt))
}

func resolutionToDirHandle(res *resolver.Resolution) *session.Handle {
	return &session.Handle{
		Kind:       session.HandleDir,
		Path:       res.NativePath,
		Disc:       res.Disc.Index,
		DottedPath: res.DottedPath,
	}
}
