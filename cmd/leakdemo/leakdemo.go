// Package leakdemo provides a cobra subcommand that exercises the
// leak detector end to end against a toy resource, for manual
// verification and as a living usage example.
package leakdemo

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quillfen/leakwatch/internal/conf"
	"github.com/quillfen/leakwatch/leak"
)

// demoBuffer is the toy resource tracked by this command: anything
// with a Close method is a plausible leak.Detector client.
type demoBuffer struct {
	id   int
	data []byte
}

func (b *demoBuffer) Close() error {
	return nil
}

// Command builds the "leakdemo" subcommand.
func Command(v *viper.Viper) *cobra.Command {
	var leakCount int
	var closeCount int

	cmd := &cobra.Command{
		Use:   "leakdemo",
		Short: "Allocate demo buffers, leaking some of them on purpose, and report what the detector finds",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := conf.Load(v)
			if err != nil {
				return fmt.Errorf("resolving configuration: %w", err)
			}

			detector, err := leak.NewDetectorFromSettings[demoBuffer]("demoBuffer", 1, settings)
			if err != nil {
				return fmt.Errorf("constructing detector: %w", err)
			}
			defer detector.Close()

			total := leakCount + closeCount
			for i := 0; i < total; i++ {
				allocate(detector, i, i < closeCount)
			}

			fmt.Printf("allocated %d demo buffers, closed %d, intentionally leaked %d\n",
				total, closeCount, leakCount)
			fmt.Println("forcing garbage collection to surface leaks...")

			runtime.GC()
			runtime.GC()
			time.Sleep(200 * time.Millisecond)

			return nil
		},
	}

	cmd.Flags().IntVar(&leakCount, "leak", 3, "number of demo buffers to intentionally leave unclosed")
	cmd.Flags().IntVar(&closeCount, "close", 5, "number of demo buffers to allocate and properly close")

	return cmd
}

// allocate creates one demo buffer, tracks it, touches it once, and
// optionally closes it. It is a separate function so the buffer and
// its tracker fall out of scope (and become eligible for collection)
// as soon as the caller's loop iteration ends.
func allocate(detector *leak.Detector[demoBuffer], id int, shouldClose bool) {
	buf := &demoBuffer{id: id, data: make([]byte, 16)}
	tracker := detector.Track(buf)
	tracker.RecordHint(fmt.Sprintf("demo buffer #%d allocated", id))

	if shouldClose {
		tracker.Close()
		_ = buf.Close()
	}
}
