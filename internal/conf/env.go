package conf

import "github.com/spf13/viper"

// envBinding pairs a dotted viper key with the real process
// environment variable that backs it, since POSIX environments have
// no notion of a dotted name. Modeled on the teacher's env-binding
// table in internal/conf/env.go.
type envBinding struct {
	key    string
	envVar string
}

var envBindings = []envBinding{
	{KeyLeakDetectionLevel, "LEAKWATCH_LEAK_DETECTION_LEVEL"},
	{KeyLeakDetectionLevelLegacy, "LEAKWATCH_LEAK_DETECTION_LEVEL_LEGACY"},
	{KeyNoResourceLeakDetection, "LEAKWATCH_NO_RESOURCE_LEAK_DETECTION"},
	{KeyTargetRecords, "LEAKWATCH_LEAK_DETECTION_TARGET_RECORDS"},
}

// bindEnvVars wires every known dotted config key to its process
// environment variable. Errors from BindEnv only occur when called
// with zero arguments, which never happens here, so they are ignored
// the same way the teacher's implementation does.
func bindEnvVars(v *viper.Viper) {
	for _, b := range envBindings {
		_ = v.BindEnv(b.key, b.envVar)
	}
}
