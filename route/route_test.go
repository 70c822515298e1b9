package route_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/audiohw/route"
)

// fakeControls records control writes so tests can inspect what a
// commit actually pushed to the hardware.
type fakeControls struct {
	ints   map[string]int
	enums  map[string]string
	writes []string
}

func newFakeControls() *fakeControls {
	return &fakeControls{
		ints:  make(map[string]int),
		enums: make(map[string]string),
	}
}

func (f *fakeControls) SetInt(name string, value int) error {
	f.ints[name] = value
	f.writes = append(f.writes, fmt.Sprintf("%s=%d", name, value))

	return nil
}

func (f *fakeControls) SetEnum(name string, item string) error {
	f.enums[name] = item
	f.writes = append(f.writes, fmt.Sprintf("%s=%s", name, item))

	return nil
}

func (f *fakeControls) Int(name string) (int, error) {
	return f.ints[name], nil
}

func (f *fakeControls) Enum(name string) (string, error) {
	if item, ok := f.enums[name]; ok {
		return item, nil
	}

	return "Off", nil
}

func testPaths() map[string][]route.Setting {
	return map[string][]route.Setting{
		"speaker": {
			{Ctl: "HF Left Playback", Enum: "HF DAC"},
			{Ctl: "HF Right Playback", Enum: "HF DAC"},
			{Ctl: "HF Playback Volume", Value: 26},
		},
		"headphone": {
			{Ctl: "HS Left Playback", Enum: "HS DAC"},
			{Ctl: "HS Right Playback", Enum: "HS DAC"},
			{Ctl: "HS Playback Volume", Value: 13},
		},
		"builtin-mic": {
			{Ctl: "Analog Left Capture Route", Enum: "Main Mic"},
			{Ctl: "Capture Volume", Value: 4},
		},
	}
}

func TestApplyAndCommit(t *testing.T) {
	ctls := newFakeControls()
	tbl, err := route.New(testPaths(), ctls)
	require.NoError(t, err)

	require.NoError(t, tbl.ApplyPath("speaker"))
	require.NoError(t, tbl.Commit())

	assert.Equal(t, "HF DAC", ctls.enums["HF Left Playback"])
	assert.Equal(t, "HF DAC", ctls.enums["HF Right Playback"])
	assert.Equal(t, 26, ctls.ints["HF Playback Volume"])
}

func TestCommitSkipsUnchanged(t *testing.T) {
	ctls := newFakeControls()
	tbl, err := route.New(testPaths(), ctls)
	require.NoError(t, err)

	require.NoError(t, tbl.ApplyPath("speaker"))
	require.NoError(t, tbl.Commit())
	writes := len(ctls.writes)

	// Re-applying and committing the same path must not touch the
	// hardware again.
	require.NoError(t, tbl.ApplyPath("speaker"))
	require.NoError(t, tbl.Commit())
	assert.Equal(t, writes, len(ctls.writes))
}

func TestResetRestoresDefaults(t *testing.T) {
	ctls := newFakeControls()
	ctls.ints["HF Playback Volume"] = 10

	tbl, err := route.New(testPaths(), ctls)
	require.NoError(t, err)

	require.NoError(t, tbl.ApplyPath("speaker"))
	require.NoError(t, tbl.Commit())
	assert.Equal(t, 26, ctls.ints["HF Playback Volume"])

	tbl.Reset()
	require.NoError(t, tbl.Commit())

	// Back to the value snapshotted at table creation.
	assert.Equal(t, 10, ctls.ints["HF Playback Volume"])
	assert.Equal(t, "Off", ctls.enums["HF Left Playback"])
}

func TestApplyOverlappingPaths(t *testing.T) {
	paths := testPaths()
	paths["speaker-loud"] = []route.Setting{
		{Ctl: "HF Playback Volume", Value: 30},
	}

	ctls := newFakeControls()
	tbl, err := route.New(paths, ctls)
	require.NoError(t, err)

	require.NoError(t, tbl.ApplyPath("speaker"))
	require.NoError(t, tbl.ApplyPath("speaker-loud"))
	require.NoError(t, tbl.Commit())

	// The later path wins for the shared control.
	assert.Equal(t, 30, ctls.ints["HF Playback Volume"])
	assert.Equal(t, "HF DAC", ctls.enums["HF Left Playback"])
}

func TestUnknownPath(t *testing.T) {
	ctls := newFakeControls()
	tbl, err := route.New(testPaths(), ctls)
	require.NoError(t, err)

	assert.Error(t, tbl.ApplyPath("bogus"))
	assert.False(t, tbl.HasPath("bogus"))
	assert.True(t, tbl.HasPath("speaker"))
}

func TestPathsSorted(t *testing.T) {
	ctls := newFakeControls()
	tbl, err := route.New(testPaths(), ctls)
	require.NoError(t, err)

	assert.Equal(t, []string{"builtin-mic", "headphone", "speaker"}, tbl.Paths())
}

func TestSettingWithoutCtlRejected(t *testing.T) {
	paths := map[string][]route.Setting{
		"broken": {{Value: 1}},
	}

	_, err := route.New(paths, newFakeControls())
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	const doc = `
paths:
  speaker:
    - ctl: "HF Left Playback"
      enum: "HF DAC"
    - ctl: "HF Playback Volume"
      value: 26
  earpiece:
    - ctl: "Earphone Playback Switch"
      value: 1
`

	file := filepath.Join(t.TempDir(), "paths.yaml")
	require.NoError(t, os.WriteFile(file, []byte(doc), 0o644))

	ctls := newFakeControls()
	tbl, err := route.Load(file, ctls)
	require.NoError(t, err)

	assert.Equal(t, []string{"earpiece", "speaker"}, tbl.Paths())

	require.NoError(t, tbl.ApplyPath("speaker"))
	require.NoError(t, tbl.Commit())
	assert.Equal(t, "HF DAC", ctls.enums["HF Left Playback"])
	assert.Equal(t, 26, ctls.ints["HF Playback Volume"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := route.Load(filepath.Join(t.TempDir(), "nope.yaml"), newFakeControls())
	assert.Error(t, err)
}
