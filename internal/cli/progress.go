package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/rescale/xferengine/internal/controller"
)

// attachProgress renders one progress bar per asset by subscribing to
// ctrl's event bus, mirroring the teacher's CLIProgress bar-per-transfer
// idiom generalized to a whole batch. Call the returned wait func after the
// facade call returns and ctrl.Bus.Close() has been called, so every
// buffered event is drained before the command exits.
func attachProgress(ctrl *controller.Controller) (wait func()) {
	events := ctrl.Bus.SubscribeAll()
	bars := make(map[uint64]*progressbar.ProgressBar)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range events {
			fe, ok := ev.(*controller.FileEvent)
			if !ok {
				continue
			}
			switch fe.Kind() {
			case controller.KindFileStart:
				bars[fe.AssetID] = newBar(fe.FileName, fe.FileSize)
			case controller.KindFileProgress:
				if bar, ok := bars[fe.AssetID]; ok {
					_ = bar.Set64(fe.Transferred)
				}
			case controller.KindFileEnd:
				if bar, ok := bars[fe.AssetID]; ok {
					_ = bar.Finish()
				}
			case controller.KindFileError:
				if bar, ok := bars[fe.AssetID]; ok {
					_ = bar.Clear()
				}
				for _, d := range fe.Errors {
					logger.Errorf("%s: %s", fe.FileName, d.Message)
				}
			}
		}
	}()

	return func() { <-done }
}

func newBar(description string, total int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)
}
