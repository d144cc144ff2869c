package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OCAP2/coil/pkg/core"
)

// CoilExport is the root JSON structure
type CoilExport struct {
	ExtensionVersion string         `json:"extensionVersion"`
	SessionName      string         `json:"sessionName"`
	WorldName        string         `json:"worldName"`
	StartTime        time.Time      `json:"startTime"`
	EndTime          time.Time      `json:"endTime"`
	Duration         float64        `json:"duration"`
	Summary          map[string]int `json:"summary"`
	Weapons          []WeaponJSON   `json:"weapons"`
	Events           [][]any        `json:"events"`
	Assignments      [][]any        `json:"assignments"`
}

// WeaponJSON is one weapon instance with its sampled states
type WeaponJSON struct {
	PlatformID string `json:"platformId"`
	WeaponID   string `json:"weaponId"`
	// States rows: [simTime, state, reserve, capacity, targetId, autoFire, primary]
	States [][]any `json:"states"`
}

// exportJSON writes the session data to a (gzipped) JSON file. Caller holds the lock.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_", `\`, "_").Replace(b.session.Name)
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeJSON(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastMeta = core.UploadMetadata{
		WorldName:       export.WorldName,
		SessionName:     export.SessionName,
		SessionDuration: export.Duration,
	}
	return nil
}

func (b *Backend) buildExport() CoilExport {
	export := CoilExport{
		ExtensionVersion: b.session.ExtensionVersion,
		SessionName:      b.session.Name,
		WorldName:        b.session.World,
		StartTime:        b.session.StartTime,
		EndTime:          b.endTime,
		Summary:          make(map[string]int),
		Weapons:          make([]WeaponJSON, 0, len(b.weaponOrder)),
		Events:           make([][]any, 0, len(b.events)),
		Assignments:      make([][]any, 0, len(b.assignments)),
	}

	first, last := 0.0, 0.0
	seen := false
	span := func(t float64) {
		if !seen || t < first {
			first = t
		}
		if !seen || t > last {
			last = t
		}
		seen = true
	}

	for _, key := range b.weaponOrder {
		record := b.weapons[key]
		w := WeaponJSON{
			PlatformID: string(record.PlatformID),
			WeaponID:   string(record.WeaponID),
			States:     make([][]any, 0, len(record.States)),
		}
		for _, s := range record.States {
			w.States = append(w.States, []any{
				s.SimTime,
				s.State.String(),
				s.Reserve,
				s.Capacity,
				string(s.TargetID),
				s.AutoFire,
				s.Primary,
			})
			span(s.SimTime)
		}
		export.Weapons = append(export.Weapons, w)
	}

	// Format: [simTime, kind, platformId, weaponId, targetId, blast, fire, reserve, extra]
	for _, e := range b.events {
		export.Events = append(export.Events, []any{
			e.SimTime,
			e.Kind,
			string(e.PlatformID),
			string(e.WeaponID),
			string(e.TargetID),
			e.Blast,
			e.Fire,
			e.Reserve,
			e.ExtraData,
		})
		export.Summary[e.Kind]++
		span(e.SimTime)
	}

	// Format: [simTime, platformId, turretId, targetId, hardPriority]
	for _, a := range b.assignments {
		export.Assignments = append(export.Assignments, []any{
			a.SimTime,
			string(a.PlatformID),
			string(a.TurretID),
			string(a.TargetID),
			a.HardPriority,
		})
		span(a.SimTime)
	}

	export.Duration = last - first
	return export
}

// GetExportMetadata describes the last export for upload
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.lastMeta
}

func writeJSON(path string, data CoilExport, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
