package econet

import "github.com/econet-fs/efsd/internal/ecerr"

// Success builds a success reply: command-echo(1) | return-code(1) |
// data…. return-code is always 0x00 on success; echo is
// handler-specific (usually 0x00, but OSCLI verbs like "I AM" use a
// distinct value — see handlers.LoginEcho).
func Success(echo byte, data ...byte) []byte {
	out := make([]byte, 0, 2+len(data))
	out = append(out, echo, 0x00)
	return append(out, data...)
}

// Error builds an error reply: 0x00 | error_code(1) | message | 0x0D.
func Error(code ErrCode, message string) []byte {
	out := make([]byte, 0, 3+len(message))
	out = append(out, 0x00, byte(code))
	out = append(out, message...)
	out = append(out, 0x0D)
	return out
}

// codeToWire maps the domain error taxonomy (internal/ecerr) onto a wire
// ErrCode.
var codeToWire = map[ecerr.Code]ErrCode{
	ecerr.BadFormat:           ErrBadPath,
	ecerr.NoDisc:              ErrBadDir,
	ecerr.NoDir:               ErrBadDir,
	ecerr.NotFound:            ErrNotFound,
	ecerr.BadType:             ErrTypesDontMatch,
	ecerr.PathTooLong:         ErrBadPath,
	ecerr.InsufficientAccess:  ErrInsufficientAccess,
	ecerr.Locked:              ErrLocked,
	ecerr.WhoAreYou:           ErrWhoAreYou,
	ecerr.AccountLocked:       ErrNoSuchUser,
	ecerr.WrongPassword:       ErrNoSuchUser,
	ecerr.TooManyFiles:        ErrTooManyOpenFiles,
	ecerr.ChannelExhausted:    ErrChannel,
	ecerr.InterlockBusy:       ErrAlreadyOpen,
	ecerr.TooManyUsers:        ErrTooManyUsers,
	ecerr.FsError:             ErrGeneric,
}

// ErrorReply renders err as a wire error reply, mapping a known *ecerr.Error
// via codeToWire and falling back to ErrGeneric with err's message for any
// other error.
func ErrorReply(err error) []byte {
	if ee, ok := ecerr.As(err); ok {
		wire, known := codeToWire[ee.Code]
		if !known {
			wire = ErrGeneric
		}
		return Error(wire, ee.Message)
	}
	return Error(ErrGeneric, err.Error())
}
