// Package demo decodes the fixed-layout records of a Source engine demo file:
// the file header, player info string-table entries and per-packet command info.
package demo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/OCAP2/demotimeline/pkg/core"
)

const (
	// Filestamp opens every valid demo.
	Filestamp = "HL2DEMO"

	maxOSPath       = 260
	filestampLength = 8
	playerNameLen   = 128
	guidLength      = 33

	// HeaderSize is the on-disk size of a demo header.
	HeaderSize = filestampLength + 4 + 4 + 4*maxOSPath + 4 + 4 + 4 + 4

	// PlayerInfoSize is the on-disk size of a player info entry.
	PlayerInfoSize = 8 + 8 + playerNameLen + 4 + guidLength + 4 + playerNameLen + 1 + 1 + 4*4 + 1

	// SplitSize is the on-disk size of one split of a command info.
	SplitSize = 4 + 6*3*4

	// CommandInfoSize is the on-disk size of a command info.
	CommandInfoSize = 2 * SplitSize
)

var (
	// ErrTruncated is returned when the input ends inside a record.
	ErrTruncated = errors.New("truncated demo record")
	// ErrBadFilestamp is returned when a header does not start with HL2DEMO.
	ErrBadFilestamp = errors.New("bad demo filestamp")
)

// record reads one fixed-size block and decodes fields from it in order.
type record struct {
	buf []byte
	off int
}

func readRecord(r io.Reader, size int, what string) (*record, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("reading %s: %w", what, ErrTruncated)
		}
		return nil, fmt.Errorf("reading %s: %w", what, err)
	}
	return &record{buf: buf}, nil
}

func (r *record) next(n int) []byte {
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *record) i32() int32 {
	return int32(binary.LittleEndian.Uint32(r.next(4)))
}

func (r *record) i32BE() int32 {
	return int32(binary.BigEndian.Uint32(r.next(4)))
}

func (r *record) i64BE() int64 {
	return int64(binary.BigEndian.Uint64(r.next(8)))
}

func (r *record) f32() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(r.next(4)))
}

func (r *record) u8() byte {
	return r.next(1)[0]
}

func (r *record) flag() bool {
	return r.u8() != 0
}

// cstring reads a fixed-width field and cuts it at the first NUL.
func (r *record) cstring(n int) string {
	b := r.next(n)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (r *record) vector() core.Vector3 {
	x, y, z := r.f32(), r.f32(), r.f32()
	return core.NewVector3(float64(x), float64(y), float64(z))
}

func (r *record) angle() core.Angle3 {
	x, y, z := r.f32(), r.f32(), r.f32()
	return core.Angle3{X: float64(x), Y: float64(y), Z: float64(z)}
}

// ReadHeader decodes the demo header and validates its filestamp.
func ReadHeader(r io.Reader) (*core.DemoHeader, error) {
	rec, err := readRecord(r, HeaderSize, "demo header")
	if err != nil {
		return nil, err
	}

	h := &core.DemoHeader{
		Filestamp:       rec.cstring(filestampLength),
		Protocol:        rec.i32(),
		NetworkProtocol: rec.i32(),
		ServerName:      rec.cstring(maxOSPath),
		ClientName:      rec.cstring(maxOSPath),
		MapName:         rec.cstring(maxOSPath),
		GameDirectory:   rec.cstring(maxOSPath),
		PlaybackTime:    rec.f32(),
		PlaybackTicks:   rec.i32(),
		PlaybackFrames:  rec.i32(),
		SignonLength:    rec.i32(),
	}
	if h.Filestamp != Filestamp {
		return h, fmt.Errorf("%w: %q", ErrBadFilestamp, h.Filestamp)
	}
	return h, nil
}

// ReadPlayerInfo decodes one userinfo string-table entry. The identity fields
// are stored big-endian.
func ReadPlayerInfo(r io.Reader) (*core.PlayerInfo, error) {
	rec, err := readRecord(r, PlayerInfoSize, "player info")
	if err != nil {
		return nil, err
	}

	info := &core.PlayerInfo{
		Version:     rec.i64BE(),
		XUID:        rec.i64BE(),
		Name:        rec.cstring(playerNameLen),
		UserID:      rec.i32BE(),
		GUID:        rec.cstring(guidLength),
		FriendsID:   rec.i32BE(),
		FriendsName: rec.cstring(playerNameLen),
	}
	info.IsFakePlayer = rec.flag()
	info.IsHLTV = rec.flag()
	for i := range info.CustomFiles {
		info.CustomFiles[i] = rec.i32()
	}
	info.FilesDownloaded = rec.u8()
	return info, nil
}

func (r *record) split() core.Split {
	flags := r.i32()
	origin, angles, local := r.vector(), r.angle(), r.angle()
	origin2, angles2, local2 := r.vector(), r.angle(), r.angle()
	return core.NewSplit(flags, origin, origin2, angles, angles2, local, local2)
}

// ReadCommandInfo decodes the two view splits preceding a packet.
func ReadCommandInfo(r io.Reader) (*core.CommandInfo, error) {
	rec, err := readRecord(r, CommandInfoSize, "command info")
	if err != nil {
		return nil, err
	}
	info := &core.CommandInfo{}
	for i := range info.Splits {
		info.Splits[i] = rec.split()
	}
	return info, nil
}

// ReadCommand reads the one-byte command tag of the next frame.
func ReadCommand(r io.Reader) (core.DemoCommand, error) {
	rec, err := readRecord(r, 1, "command")
	if err != nil {
		return 0, err
	}
	cmd := core.DemoCommand(rec.u8())
	if cmd < core.DemoFirstCommand || cmd > core.DemoLastCommand {
		return cmd, fmt.Errorf("unknown demo command %d", cmd)
	}
	return cmd, nil
}
