// pkg/core/demo.go
package core

// DemoHeader is the fixed-size record at the start of every demo.
type DemoHeader struct {
	Filestamp       string  `json:"filestamp"` // HL2DEMO
	Protocol        int32   `json:"protocol"`
	NetworkProtocol int32   `json:"networkProtocol"`
	ServerName      string  `json:"serverName"`
	ClientName      string  `json:"clientName"`
	MapName         string  `json:"mapName"`
	GameDirectory   string  `json:"gameDirectory"`
	PlaybackTime    float32 `json:"playbackTime"`
	PlaybackTicks   int32   `json:"playbackTicks"`
	PlaybackFrames  int32   `json:"playbackFrames"`
	SignonLength    int32   `json:"signonLength"`
}

// PlayerInfo mirrors the engine's playerinfo_t string-table entry.
type PlayerInfo struct {
	Version         int64
	XUID            int64
	Name            string
	UserID          int32
	GUID            string
	FriendsID       int32
	FriendsName     string
	IsFakePlayer    bool
	IsHLTV          bool
	CustomFiles     [4]int32
	FilesDownloaded uint8
}

// Split flag bits.
const (
	FDemoNormal     = 0
	FDemoUseOrigin2 = 1
	FDemoUseAngles2 = 2
	FDemoNoInterp   = 4
)

// Split is one player's view data inside a CommandInfo.
type Split struct {
	Flags            int32
	viewOrigin       Vector3
	viewAngles       Angle3
	localViewAngles  Angle3
	viewOrigin2      Vector3
	viewAngles2      Angle3
	localViewAngles2 Angle3
}

// NewSplit builds a Split from its primary and secondary view data.
func NewSplit(flags int32, origin, origin2 Vector3, angles, angles2, local, local2 Angle3) Split {
	return Split{
		Flags:            flags,
		viewOrigin:       origin,
		viewAngles:       angles,
		localViewAngles:  local,
		viewOrigin2:      origin2,
		viewAngles2:      angles2,
		localViewAngles2: local2,
	}
}

func (s Split) ViewOrigin() Vector3 {
	if s.Flags&FDemoUseOrigin2 != 0 {
		return s.viewOrigin2
	}
	return s.viewOrigin
}

func (s Split) ViewAngles() Angle3 {
	if s.Flags&FDemoUseAngles2 != 0 {
		return s.viewAngles2
	}
	return s.viewAngles
}

func (s Split) LocalViewAngles() Angle3 {
	if s.Flags&FDemoUseAngles2 != 0 {
		return s.localViewAngles2
	}
	return s.localViewAngles
}

// CommandInfo precedes every packet command.
type CommandInfo struct {
	Splits [2]Split
}

// DemoCommand is the one-byte command tag of a demo frame.
type DemoCommand uint8

const (
	DemoSignon DemoCommand = iota + 1
	DemoPacket
	DemoSynctick
	DemoConsoleCommand
	DemoUserCommand
	DemoDataTables
	DemoStop
	DemoCustomData
	DemoStringTables

	DemoFirstCommand = DemoSignon
	DemoLastCommand  = DemoStringTables
)

// RoundEndReason as reported by round_end.
type RoundEndReason int

const (
	TargetBombed RoundEndReason = iota + 1
	VIPEscaped
	VIPKilled
	TerroristsEscaped
	CTStoppedEscape
	TerroristsStopped
	BombDefused
	CTWin
	TerroristWin
	Draw
	HostagesRescued
	TargetSaved
	HostagesNotRescued
	TerroristsNotEscaped
	VIPNotEscaped
	GameStart
	TerroristsSurrender
	CTSurrender
)

// RoundMVPReason as reported by round_mvp.
type RoundMVPReason int

const (
	MVPMostEliminations RoundMVPReason = iota + 1
	MVPBombPlanted
	MVPBombDefused
)

// Hitgroup of a player_hurt event.
type Hitgroup int

const (
	HitgroupGeneric  Hitgroup = 0
	HitgroupHead     Hitgroup = 1
	HitgroupChest    Hitgroup = 2
	HitgroupStomach  Hitgroup = 3
	HitgroupLeftArm  Hitgroup = 4
	HitgroupRightArm Hitgroup = 5
	HitgroupLeftLeg  Hitgroup = 6
	HitgroupRightLeg Hitgroup = 7
	HitgroupGear     Hitgroup = 10
)
