package conf

// Contractual viper key names. These are deliberately dotted, mirroring
// the property names implementers of the source system are expected to
// honor; viper addresses dotted keys as nested paths natively.
const (
	KeyLeakDetectionLevel       = "io.netty.leakDetection.level"
	KeyLeakDetectionLevelLegacy = "io.netty.leakDetectionLevel"
	KeyNoResourceLeakDetection  = "io.netty.noResourceLeakDetection"
	KeyTargetRecords            = "io.netty.leakDetection.targetRecords"
)

// DefaultTargetRecords is used when neither the config key nor its
// bound environment variable supplies a value.
const DefaultTargetRecords = 4

// DefaultLevel is used when no level is configured at all.
const DefaultLevel = "simple"
