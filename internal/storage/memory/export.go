// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OCAP2/demotimeline/internal/storage"
	"github.com/OCAP2/demotimeline/internal/util"
	"github.com/OCAP2/demotimeline/pkg/core"
)

const (
	phaseStarted = "fire_started"
	phaseEnded   = "fire_ended"
)

// TimelineExport is the root JSON structure
type TimelineExport struct {
	MapName       string     `json:"mapName"`
	ServerName    string     `json:"serverName"`
	ClientName    string     `json:"clientName"`
	GameDirectory string     `json:"gameDirectory"`
	PlaybackTime  float32    `json:"playbackTime"`
	PlaybackTicks int32      `json:"playbackTicks"`
	Fires         []FireJSON `json:"fires"`
	// Events is every enriched event in emission order:
	// [time, type, detonationId, kind, [x, y, z], throwerSlot]
	Events [][]any `json:"events"`
}

// FireJSON is one burn, pairing a start with the end sharing its detonation id.
type FireJSON struct {
	DetonationID int          `json:"detonationId"`
	Kind         string       `json:"kind"`
	Position     [3]float64   `json:"position"`
	StartTime    *float64     `json:"startTime,omitempty"`
	EndTime      *float64     `json:"endTime,omitempty"`
	Thrower      *ThrowerJSON `json:"thrower,omitempty"`
}

// ThrowerJSON identifies the player a fire is attributed to.
type ThrowerJSON struct {
	Slot    int    `json:"slot"`
	Name    string `json:"name"`
	SteamID int64  `json:"steamId,omitempty"`
}

func throwerJSON(p *core.Player) *ThrowerJSON {
	if p == nil {
		return nil
	}
	return &ThrowerJSON{Slot: p.Slot, Name: p.Name, SteamID: p.SteamID}
}

func vec(v core.Vector3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// exportJSON writes the timeline to a JSON file, gzipped if configured
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	mapName := util.SafeFileName(b.header.MapName)
	timestamp := b.startedAt.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", mapName, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = b.writeGzipJSON(outputPath, export)
	} else {
		err = b.writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	attributed := 0
	for _, f := range export.Fires {
		if f.Thrower != nil {
			attributed++
		}
	}
	b.lastExportPath = outputPath
	b.lastMetadata = storage.UploadMetadata{
		MapName:      b.header.MapName,
		ServerName:   b.header.ServerName,
		PlaybackTime: float64(b.header.PlaybackTime),
		FireCount:    len(export.Fires),
		Attributed:   attributed,
	}
	return nil
}

func (b *Backend) buildExport() TimelineExport {
	export := TimelineExport{
		MapName:       b.header.MapName,
		ServerName:    b.header.ServerName,
		ClientName:    b.header.ClientName,
		GameDirectory: b.header.GameDirectory,
		PlaybackTime:  b.header.PlaybackTime,
		PlaybackTicks: b.header.PlaybackTicks,
		Fires:         make([]FireJSON, 0),
		Events:        make([][]any, 0, len(b.events)),
	}

	type burnKey struct {
		kind core.EquipmentKind
		id   int
	}
	// open burns by kind and detonation id; ids are reused across a match
	open := make(map[burnKey]int)

	for _, e := range b.events {
		throwerSlot := -1
		if e.thrower != nil {
			throwerSlot = e.thrower.Slot
		}
		export.Events = append(export.Events, []any{
			e.time,
			e.phase,
			e.detonationID,
			e.kind.String(),
			vec(e.position),
			throwerSlot,
		})

		key := burnKey{e.kind, e.detonationID}
		t := e.time
		switch e.phase {
		case phaseStarted:
			export.Fires = append(export.Fires, FireJSON{
				DetonationID: e.detonationID,
				Kind:         e.kind.String(),
				Position:     vec(e.position),
				StartTime:    &t,
				Thrower:      throwerJSON(e.thrower),
			})
			open[key] = len(export.Fires) - 1
		case phaseEnded:
			idx, ok := open[key]
			if !ok {
				export.Fires = append(export.Fires, FireJSON{
					DetonationID: e.detonationID,
					Kind:         e.kind.String(),
					Position:     vec(e.position),
					EndTime:      &t,
					Thrower:      throwerJSON(e.thrower),
				})
				continue
			}
			delete(open, key)
			fire := &export.Fires[idx]
			fire.EndTime = &t
			if fire.Thrower == nil {
				fire.Thrower = throwerJSON(e.thrower)
			}
		}
	}

	return export
}

func (b *Backend) writeJSON(path string, data TimelineExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data TimelineExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
