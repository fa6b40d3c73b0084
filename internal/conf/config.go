// Package conf resolves leakwatch's tunables from viper, binding the
// contractual dotted property names to real environment variables,
// following the teacher repository's internal/conf package.
package conf

import (
	"strings"
	"sync"

	"github.com/spf13/viper"

	leakerrors "github.com/quillfen/leakwatch/internal/errors"
)

// Settings is the resolved configuration a Detector is built from.
type Settings struct {
	// Level is the configured level name, trimmed and lower-cased but
	// not validated (leak.ParseLevel maps unknown names to "simple").
	// KeyLeakDetectionLevel takes priority over the legacy
	// KeyLeakDetectionLevelLegacy key, except that a primary value equal
	// to DefaultLevel is indistinguishable from an unset one, so a
	// non-empty legacy value then wins.
	Level string

	// ForceDisabled mirrors the legacy noResourceLeakDetection
	// boolean; when true it overrides Level to "disabled".
	ForceDisabled bool

	// TargetRecords bounds access-trail depth. Must be >= 1.
	TargetRecords int
}

// New returns a viper instance with every contractual key bound to
// its environment variable and sane defaults populated.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyLeakDetectionLevel, DefaultLevel)
	v.SetDefault(KeyTargetRecords, DefaultTargetRecords)
	v.SetDefault(KeyNoResourceLeakDetection, false)
	bindEnvVars(v)
	return v
}

var (
	defaultOnce     sync.Once
	defaultSettings Settings
	defaultErr      error
)

// Setting returns the process-wide Settings resolved from New(),
// computed once and cached, mirroring the teacher's conf.Setting()
// singleton accessor.
func Setting() (Settings, error) {
	defaultOnce.Do(func() {
		defaultSettings, defaultErr = Load(New())
	})
	return defaultSettings, defaultErr
}

// Load resolves Settings from v, validating TargetRecords and
// normalizing the level string. Target records of zero or less is
// rejected as invalid configuration rather than silently clamped.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		Level:         v.GetString(KeyLeakDetectionLevel),
		TargetRecords: v.GetInt(KeyTargetRecords),
		ForceDisabled: v.GetBool(KeyNoResourceLeakDetection),
	}

	if s.Level == "" || s.Level == DefaultLevel {
		if legacy := v.GetString(KeyLeakDetectionLevelLegacy); legacy != "" {
			s.Level = legacy
		}
	}
	if s.Level == "" {
		s.Level = DefaultLevel
	}
	s.Level = strings.ToLower(strings.TrimSpace(s.Level))

	if s.ForceDisabled {
		s.Level = "disabled"
	}

	if s.TargetRecords < 1 {
		return Settings{}, leakerrors.New(nil).
			Category(leakerrors.CategoryConfiguration).
			Context("key", KeyTargetRecords).
			Context("value", s.TargetRecords).
			Context("reason", "target records must be >= 1").
			Build()
	}

	return s, nil
}
