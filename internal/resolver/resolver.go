// Package resolver implements the path resolver: translating
// a client-supplied dotted-namespace path, possibly relative to an open
// handle and possibly wildcarded, into a fully-qualified resolution against
// the host filesystem.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/econet-fs/efsd/internal/attrs"
	"github.com/econet-fs/efsd/internal/ecerr"
	"github.com/econet-fs/efsd/internal/protocol/econet/codec"
)

// ObjType classifies a resolved object.
type ObjType int

const (
	NotFound ObjType = iota
	File
	Directory
	Other
)

// Anchor is the subset of an open handle's identity the resolver needs to
// resolve a path relative to it. Avoids importing
// the session package for just this shape.
type Anchor struct {
	Disc       Disc
	DottedPath string // ":<disc>.$[.comp…]"
}

// WildcardMatch is one sibling match recorded when the terminal path
// component contains a wildcard.
type WildcardMatch struct {
	Name       string
	NativePath string
	Type       ObjType
	Attrs      attrs.Attrs
	Length     int64
	ModTime    time.Time
}

// Resolution is the full result of a successful resolve.
type Resolution struct {
	Disc       Disc
	Components []string
	NativePath string
	DottedPath string
	Type       ObjType

	Attrs   attrs.Attrs
	Length  int64
	ModTime time.Time

	ParentAttrs      attrs.Attrs
	ParentNativePath string

	// Effective is the requester's effective permission on the resolved
	// object.
	Effective codec.Perm

	// Matches holds every sibling matched by a terminal wildcard
	// component; empty when the terminal component was a literal name.
	Matches []WildcardMatch
}

// Resolver ties the disc registry and attribute store together to
// implement resolve().
type Resolver struct {
	Discs *Discs
	Attrs attrs.Store
}

// New constructs a Resolver.
func New(discs *Discs, store attrs.Store) *Resolver {
	return &Resolver{Discs: discs, Attrs: store}
}

const maxComponents = 30
const maxComponentLen = 10

// Resolve walks a dotted Econet pathname (optionally wildcarded) relative
// to an anchor, resolving disc specifiers, ".." / "$" components, and
// case-insensitive matching against the host directory along the way.
// requesterIsSystem and requesterOwner decide the effective-permission
// rule; defaultDisc is used when the path is absolute-by-default (no
// explicit disc specifier) and there is no relativeTo to inherit a disc
// from — the case of resolving a brand new session's root anchor at
// login.
func (r *Resolver) Resolve(requesterIsSystem bool, requesterOwner uint16, inputPath string, relativeTo *Anchor, defaultDisc *Disc, allowWildcards bool) (*Resolution, error) {
	// 1. Strip trailing spaces: the first space terminates the input.
	if idx := strings.IndexByte(inputPath, ' '); idx >= 0 {
		inputPath = inputPath[:idx]
	}

	// 2. Extract disc specifier.
	var selectedDisc *Disc
	if strings.HasPrefix(inputPath, ":") {
		rest := inputPath[1:]
		var discName, remainder string
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			discName, remainder = rest[:dot], rest[dot+1:]
		} else {
			discName, remainder = rest, ""
		}
		if discName == "" || len(discName) > maxComponentLen {
			return nil, ecerr.New(ecerr.BadFormat, "malformed disc specifier")
		}
		disc, ok := r.Discs.ByName(discName)
		if !ok {
			return nil, ecerr.New(ecerr.NoDisc, fmt.Sprintf("no such disc %q", discName))
		}
		selectedDisc = &disc
		switch {
		case remainder == "":
			inputPath = "$"
		case strings.HasPrefix(remainder, "$"):
			inputPath = remainder
		default:
			inputPath = "$." + remainder
		}
	}

	// 3. Anchor.
	absolute := strings.HasPrefix(inputPath, "$")
	var disc Disc
	var baseComponents []string
	switch {
	case selectedDisc != nil:
		disc = *selectedDisc
	case relativeTo != nil:
		disc = relativeTo.Disc
	case defaultDisc != nil:
		disc = *defaultDisc
	default:
		return nil, ecerr.New(ecerr.NoDisc, "no disc selected")
	}

	var rest string
	if absolute {
		rest = strings.TrimPrefix(inputPath, "$")
		rest = strings.TrimPrefix(rest, ".")
	} else {
		rest = inputPath
		if relativeTo != nil {
			baseComponents = anchorComponents(*relativeTo)
		}
	}

	// 4. Tokenise.
	tokens, err := tokenise(rest)
	if err != nil {
		return nil, err
	}

	stack := append([]string{}, baseComponents...)
	for _, tok := range tokens {
		if tok == "^" {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		stack = append(stack, tok)
		if len(stack) > maxComponents {
			return nil, ecerr.New(ecerr.BadFormat, "path too deep")
		}
	}

	return r.traverse(requesterIsSystem, requesterOwner, disc, stack, allowWildcards)
}

// anchorComponents recovers the component stack implied by a's dotted
// path, stripping the ":<disc>.$" prefix.
func anchorComponents(a Anchor) []string {
	p := a.DottedPath
	if i := strings.IndexByte(p, '.'); i >= 0 {
		p = p[i+1:] // drop ":<disc>"
	}
	p = strings.TrimPrefix(p, "$")
	p = strings.TrimPrefix(p, ".")
	if p == "" {
		return nil
	}
	return strings.Split(p, ".")
}

func tokenise(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return nil, ecerr.New(ecerr.BadFormat, "empty path component")
		}
		if len(p) > maxComponentLen {
			return nil, ecerr.New(ecerr.BadFormat, "path component too long")
		}
	}
	if len(parts) > maxComponents {
		return nil, ecerr.New(ecerr.BadFormat, "too many path components")
	}
	return parts, nil
}

// traverse walks the host filesystem from disc.Root following components,
// case-insensitively matching each against the host directory, tracking
// sidecar attributes as it descends, and applying access checks against
// each component's owner and permission bits.
func (r *Resolver) traverse(requesterIsSystem bool, requesterOwner uint16, disc Disc, components []string, allowWildcards bool) (*Resolution, error) {
	currentNative := disc.Root
	currentDotted := fmt.Sprintf(":%s.$", disc.Name)
	parentAttrs := attrs.Default
	parentNative := ""
	resolvedComponents := make([]string, 0, len(components))

	for i, comp := range components {
		isTerminal := i == len(components)-1
		isWildcard := allowWildcards && codec.HasWildcard(comp)

		entries, err := readDiscDir(currentNative)
		if err != nil {
			return nil, ecerr.Wrap(ecerr.NoDir, "cannot read directory", err)
		}

		if isWildcard {
			matches, err := matchWildcard(entries, comp)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return nil, ecerr.New(ecerr.NoDir, "no entries match")
			}
			if isTerminal {
				return r.buildWildcardResult(requesterIsSystem, requesterOwner, disc, resolvedComponents, currentNative, currentDotted, parentAttrs, parentNative, matches)
			}
			// Non-terminal wildcard: continue into the first match only.
			name := matches[0]
			childNative := filepath.Join(currentNative, codec.DottedToNative(name))
			info, err := os.Stat(childNative)
			if err != nil || !info.IsDir() {
				return nil, ecerr.New(ecerr.NoDir, "not a directory")
			}
			if !r.canRead(requesterIsSystem, requesterOwner, parentAttrs) {
				return nil, ecerr.New(ecerr.InsufficientAccess, "cannot read directory")
			}
			parentAttrs = r.Attrs.Read(childNative)
			parentNative = childNative
			currentNative = childNative
			currentDotted = currentDotted + "." + name
			resolvedComponents = append(resolvedComponents, name)
			continue
		}

		match, found := findCaseInsensitive(entries, comp)
		if !found {
			if isTerminal {
				// Terminal not-found: succeed with ftype NotFound, path
				// pre-extended with the to-be-created name.
				childNative := filepath.Join(currentNative, codec.DottedToNative(comp))
				resolvedComponents = append(resolvedComponents, comp)
				return &Resolution{
					Disc:             disc,
					Components:       resolvedComponents,
					NativePath:       childNative,
					DottedPath:       currentDotted + "." + comp,
					Type:             NotFound,
					Attrs:            attrs.Default,
					ParentAttrs:      parentAttrs,
					ParentNativePath: currentNative,
					Effective:        r.effective(requesterIsSystem, requesterOwner, parentAttrs),
				}, nil
			}
			return nil, ecerr.New(ecerr.NoDir, fmt.Sprintf("%q not found", comp))
		}

		childNative := filepath.Join(currentNative, match)
		info, err := os.Stat(childNative)
		if err != nil {
			return nil, ecerr.Wrap(ecerr.FsError, "stat failed", err)
		}

		if !isTerminal {
			if !info.IsDir() {
				return nil, ecerr.New(ecerr.NoDir, fmt.Sprintf("%q is not a directory", comp))
			}
			if !r.canRead(requesterIsSystem, requesterOwner, parentAttrs) {
				return nil, ecerr.New(ecerr.InsufficientAccess, "cannot read directory")
			}
			dotted := codec.NativeToDotted(match)
			parentAttrs = r.Attrs.Read(childNative)
			parentNative = childNative
			currentNative = childNative
			currentDotted = currentDotted + "." + dotted
			resolvedComponents = append(resolvedComponents, dotted)
			continue
		}

		// 6. Terminal, found.
		dotted := codec.NativeToDotted(match)
		resolvedComponents = append(resolvedComponents, dotted)
		a := r.Attrs.Read(childNative)
		typ := Other
		var length int64
		if info.IsDir() {
			typ = Directory
		} else if info.Mode().IsRegular() {
			typ = File
			length = info.Size()
		}
		return &Resolution{
			Disc:             disc,
			Components:       resolvedComponents,
			NativePath:       childNative,
			DottedPath:       currentDotted + "." + dotted,
			Type:             typ,
			Attrs:            a,
			Length:           length,
			ModTime:          info.ModTime(),
			ParentAttrs:      parentAttrs,
			ParentNativePath: currentNative,
			Effective:        r.effective(requesterIsSystem, requesterOwner, a),
		}, nil
	}

	// Zero components: the path resolved to the anchor/root itself.
	info, err := os.Stat(currentNative)
	if err != nil {
		return nil, ecerr.Wrap(ecerr.NoDir, "disc root unreadable", err)
	}
	a := r.Attrs.Read(currentNative)
	return &Resolution{
		Disc:             disc,
		Components:       resolvedComponents,
		NativePath:       currentNative,
		DottedPath:       currentDotted,
		Type:             Directory,
		Attrs:            a,
		ModTime:          info.ModTime(),
		ParentAttrs:      parentAttrs,
		ParentNativePath: parentNative,
		Effective:        r.effective(requesterIsSystem, requesterOwner, a),
	}, nil
}

func (r *Resolver) buildWildcardResult(requesterIsSystem bool, requesterOwner uint16, disc Disc, resolvedComponents []string, currentNative, currentDotted string, parentAttrs attrs.Attrs, parentNative string, names []string) (*Resolution, error) {
	matches := make([]WildcardMatch, 0, len(names))
	for _, name := range names {
		native := filepath.Join(currentNative, codec.DottedToNative(name))
		info, err := os.Stat(native)
		if err != nil {
			continue
		}
		a := r.Attrs.Read(native)
		if a.Perm&codec.PermHidden != 0 && !r.owns(requesterOwner, a) && !requesterIsSystem {
			continue
		}
		typ := Other
		var length int64
		if info.IsDir() {
			typ = Directory
		} else if info.Mode().IsRegular() {
			typ = File
			length = info.Size()
		}
		matches = append(matches, WildcardMatch{
			Name:       name,
			NativePath: native,
			Type:       typ,
			Attrs:      a,
			Length:     length,
			ModTime:    info.ModTime(),
		})
	}
	return &Resolution{
		Disc:             disc,
		Components:       resolvedComponents,
		NativePath:       currentNative,
		DottedPath:       currentDotted,
		Type:             Directory,
		ParentAttrs:      parentAttrs,
		ParentNativePath: parentNative,
		Effective:        r.effective(requesterIsSystem, requesterOwner, parentAttrs),
		Matches:          matches,
	}, nil
}

// effective reduces a path component's owner and raw permission bits to
// the permission the requesting user actually gets: system users get every
// bit; the owner gets the owner read/write bits plus locked and hidden;
// everyone else gets the public/"other" read/write bits plus locked and
// hidden.
func (r *Resolver) effective(requesterIsSystem bool, requesterOwner uint16, a attrs.Attrs) codec.Perm {
	switch {
	case requesterIsSystem:
		return codec.PermOwnerRead | codec.PermOwnerWrite | codec.PermOtherRead | codec.PermOtherWrite | codec.PermLocked | codec.PermHidden
	case a.Owner == requesterOwner:
		return a.Perm & (codec.PermOwnerRead | codec.PermOwnerWrite | codec.PermLocked | codec.PermHidden)
	default:
		other := a.Perm & (codec.PermOtherRead | codec.PermOtherWrite)
		return other | (a.Perm & (codec.PermLocked | codec.PermHidden))
	}
}

func (r *Resolver) owns(requesterOwner uint16, a attrs.Attrs) bool { return a.Owner == requesterOwner }

func (r *Resolver) canRead(requesterIsSystem bool, requesterOwner uint16, a attrs.Attrs) bool {
	eff := r.effective(requesterIsSystem, requesterOwner, a)
	return eff&(codec.PermOwnerRead|codec.PermOtherRead) != 0
}

// readDiscDir lists a directory's entries, dropping "lost+found" and names
// longer than 10 characters.
func readDiscDir(native string) ([]string, error) {
	entries, err := os.ReadDir(native)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name == "lost+found" || len(name) > maxComponentLen {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

// findCaseInsensitive finds the native entry matching comp (a dotted-form
// name) case-insensitively, translating ':' back to '/' for comparison.
func findCaseInsensitive(entries []string, comp string) (string, bool) {
	for _, e := range entries {
		if strings.EqualFold(codec.NativeToDotted(e), comp) {
			return e, true
		}
	}
	return "", false
}

// matchWildcard returns every dotted-form entry name matching glob,
// ordered case-insensitively by name.
func matchWildcard(entries []string, glob string) ([]string, error) {
	pattern, err := codec.WildcardToPattern(glob)
	if err != nil {
		return nil, ecerr.Wrap(ecerr.BadFormat, "bad wildcard", err)
	}
	var out []string
	for _, e := range entries {
		dotted := codec.NativeToDotted(e)
		if pattern.MatchString(dotted) {
			out = append(out, dotted)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out, nil
}
