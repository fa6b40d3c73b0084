package leak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillfen/leakwatch/internal/conf"
)

func TestNewDetectorFromSettingsAppliesLevelAndTargetRecords(t *testing.T) {
	s := conf.Settings{Level: "paranoid", TargetRecords: 7}

	d, err := NewDetectorFromSettings[demoBuffer]("demoBuffer", 1, s)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, Paranoid, d.Level())
	assert.Equal(t, 7, d.core.targetRecords)
}

func TestNewDetectorFromSettingsFallsBackToSimpleOnUnknownLevel(t *testing.T) {
	s := conf.Settings{Level: "extreme", TargetRecords: 4}

	d, err := NewDetectorFromSettings[demoBuffer]("demoBuffer", 1, s)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, Simple, d.Level())
}
