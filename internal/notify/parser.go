package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxImageBytes caps the hex payload accumulated for one image.
const DefaultMaxImageBytes = 5 * 1024 * 1024

// Mode is the accumulator's position inside the current Notify call.
type Mode int

const (
	// ModeIdle ignores lines until the next Notify boundary.
	ModeIdle Mode = iota
	// ModeTopLevel reads positional arguments.
	ModeTopLevel
	// ModeActions reads the as actions array.
	ModeActions
	// ModeHints reads the a{sv} hints dictionary.
	ModeHints
	// ModeImage reads an image-data struct.
	ModeImage
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeTopLevel:
		return "top-level"
	case ModeActions:
		return "actions"
	case ModeHints:
		return "hints"
	case ModeImage:
		return "image"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Limits bound the work done per frame.
type Limits struct {
	MaxImageBytes int
	ThumbnailSize int
}

// DefaultLimits returns the 5 MiB image budget and 42px thumbnail box.
func DefaultLimits() Limits {
	return Limits{MaxImageBytes: DefaultMaxImageBytes, ThumbnailSize: DefaultThumbnailSize}
}

// State is the complete parser state between two trace lines. It is a value:
// Step returns the successor and the caller must drop the previous value,
// since both share the frame under construction.
type State struct {
	Mode   Mode
	Index  int
	Frame  Frame
	Limits Limits

	// resume is the mode restored when an image struct closes.
	resume     Mode
	hintKey    string
	hasHintKey bool
	hintDepth  int

	imageInts     []int
	hexRows       []string
	imageBytes    int
	imageOverflow bool

	// partial holds the lines of a string literal whose closing quote has
	// not been seen yet.
	partial []string
}

// NewState returns an idle parser that waits for the first Notify boundary.
func NewState(limits Limits) State {
	if limits.MaxImageBytes <= 0 {
		limits.MaxImageBytes = DefaultMaxImageBytes
	}
	return State{Mode: ModeIdle, Index: -1, Limits: limits}
}

// Step feeds one line of dbus-monitor output. When the line completes the
// previous call frame, that frame is returned alongside the new state.
func Step(s State, line string) (State, *Frame) {
	done := s.step(strings.TrimSpace(line))
	return s, done
}

// Finish returns the in-flight frame at end of stream, if it is worth
// emitting. A string literal still waiting for its closing quote is dropped.
func (s State) Finish() *Frame {
	if s.Mode == ModeIdle || s.Frame.Empty() {
		return nil
	}
	f := s.Frame
	return &f
}

func (s *State) step(line string) *Frame {
	kind := Classify(line)
	if s.partial != nil && !kind.Has(KindHeader) {
		s.continueString(line)
		return nil
	}

	if kind.Has(KindHeader) {
		done := s.Finish()
		next := ModeIdle
		if kind.Has(KindBoundary) {
			next = ModeTopLevel
		}
		*s = State{Mode: next, Index: -1, Limits: s.Limits}
		return done
	}

	switch s.Mode {
	case ModeIdle:
		return nil
	case ModeTopLevel:
		s.stepTopLevel(line, kind)
	case ModeActions:
		s.stepActions(line, kind)
	case ModeHints:
		s.stepHints(line, kind)
	case ModeImage:
		s.stepImage(line, kind)
		return nil
	}

	if kind.Has(KindImageMarker) {
		s.enterImage()
	}
	return nil
}

func (s *State) stepTopLevel(line string, kind LineKind) {
	if kind.Has(KindTypeDecl) {
		s.Index++
	}

	switch {
	case kind.Has(KindString):
		s.beginString(line)
	case kind.Has(KindUint32) && s.Index == argReplacesID:
		if id, err := strconv.ParseUint(scalarValue(line), 10, 32); err == nil {
			s.Frame.ReplacesID = uint32(id)
		}
	case kind.Has(KindArrayOpen) && s.Index == argActions:
		s.Mode = ModeActions
	case kind.Has(KindArrayOpen) && s.Index == argHints:
		s.Mode = ModeHints
		s.hintDepth = 0
		s.hasHintKey = false
	}
}

func (s *State) stepActions(line string, kind LineKind) {
	switch {
	case kind.Has(KindString):
		s.beginString(line)
	case kind.Has(KindClose):
		s.Mode = ModeTopLevel
	}
}

func (s *State) stepHints(line string, kind LineKind) {
	switch {
	case kind.Has(KindDictEntry):
		s.hasHintKey = false
	case kind.Has(KindString):
		s.beginString(line)
	case kind.Has(KindOpen):
		s.hintDepth++
	case kind.Has(KindClose):
		if s.hintDepth > 0 {
			s.hintDepth--
			return
		}
		s.Mode = ModeTopLevel
		s.hasHintKey = false
	}
}

func (s *State) enterImage() {
	if s.Mode != ModeImage {
		s.resume = s.Mode
	}
	s.Mode = ModeImage
	s.imageInts = nil
	s.hexRows = nil
	s.imageBytes = 0
	s.imageOverflow = false
}

func (s *State) stepImage(line string, kind LineKind) {
	switch {
	case kind.Has(KindImageMarker):
		s.enterImage()
	case kind.Has(KindInt32), kind.Has(KindBoolean):
		if v, ok := parseImageInt(scalarValue(line)); ok {
			s.imageInts = append(s.imageInts, v)
		}
	case kind.Has(KindHexRow):
		if s.imageBytes < s.Limits.MaxImageBytes {
			s.hexRows = append(s.hexRows, line)
			s.imageBytes += len(line) / 2
		} else {
			s.imageOverflow = true
		}
	case kind.Has(KindStructClose), kind.Has(KindClose) && len(s.hexRows) > 0:
		s.closeImage()
	}
}

func (s *State) closeImage() {
	switch {
	case s.imageOverflow:
		s.Frame.ImageErr = fmt.Errorf("%w: more than %d bytes", ErrImageTooLarge, s.Limits.MaxImageBytes)
	case len(s.imageInts) >= 5 && len(s.hexRows) > 0:
		img, err := DecodeImage(s.imageInts, s.hexRows, s.Limits.ThumbnailSize)
		s.Frame.Image, s.Frame.ImageErr = img, err
	}
	s.imageInts = nil
	s.hexRows = nil
	s.imageBytes = 0
	s.imageOverflow = false
	s.Mode = s.resume
}

func parseImageInt(token string) (int, bool) {
	switch token {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	v, err := strconv.Atoi(token)
	return v, err == nil
}

// beginString starts a string literal: the text between the first and the
// last quote on the line. A line with a single quote opens a literal that
// continueString completes.
func (s *State) beginString(line string) {
	open := strings.IndexByte(line, '"')
	if open < 0 {
		return
	}
	if end := strings.LastIndexByte(line, '"'); end > open {
		s.acceptString(unquote(line[open+1 : end]))
		return
	}
	s.partial = []string{line[open+1:]}
}

// continueString appends one line to an open literal. dbus-monitor prints
// string contents verbatim, so the first line ending in a quote closes it.
func (s *State) continueString(line string) {
	if !strings.HasSuffix(line, `"`) {
		s.partial = append(s.partial, line)
		return
	}
	s.partial = append(s.partial, line[:len(line)-1])
	text := strings.Join(s.partial, "\n")
	s.partial = nil
	s.acceptString(unquote(text))
}

// acceptString routes a completed literal by mode and positional index.
func (s *State) acceptString(value string) {
	switch s.Mode {
	case ModeTopLevel:
		switch s.Index {
		case argAppName:
			s.Frame.AppName = value
		case argIcon:
			s.Frame.Icon = value
		case argSummary:
			s.Frame.Summary = value
		case argBody:
			s.Frame.Body = value
		}
	case ModeActions:
		s.Frame.Actions = append(s.Frame.Actions, value)
	case ModeHints:
		// Elements of array hint values are neither keys nor values.
		if s.hintDepth > 0 {
			return
		}
		if !s.hasHintKey {
			s.hintKey, s.hasHintKey = value, true
			return
		}
		if s.Frame.Hints == nil {
			s.Frame.Hints = make(map[string]string)
		}
		s.Frame.Hints[s.hintKey] = value
		s.hasHintKey = false
	}
}

// unquote resolves the \" and \\ escapes dbus-monitor emits.
func unquote(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) && (raw[i+1] == '"' || raw[i+1] == '\\') {
			i++
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}
