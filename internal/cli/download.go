package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/xfer"
	"github.com/rescale/xferengine/internal/xferhttp"
)

func newDownloadCmd() *cobra.Command {
	var (
		useAEM        bool
		partSize      int64
		maxConcurrent int
	)

	cmd := &cobra.Command{
		Use:   "download <source-url> <local-file>",
		Short: "Download a file from a directly addressable URL to local disk",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := model.NewURLAsset(args[0], nil, nil)
			if err != nil {
				return err
			}
			tgt, err := model.NewURLAsset("file://"+args[1], nil, nil)
			if err != nil {
				return err
			}

			ctrl := controller.New()
			wait := attachProgress(ctrl)

			opts := xfer.DownloadOptions{Options: xfer.Options{Controller: ctrl}}
			if client, err := xferhttp.New(cfg); err == nil {
				opts.Client = client
			}
			policy := retryPolicyWithLogging()
			opts.RetryPolicy = &policy
			if partSize > 0 {
				opts.PreferredPartSize = &partSize
			}
			if maxConcurrent > 0 {
				opts.MaxConcurrent = maxConcurrent
			}

			files := []xfer.FileTransfer{{Source: src, Target: tgt}}

			var results []xfer.Result
			if useAEM {
				results = xfer.AEMDownload(cmd.Context(), opts, files)
			} else {
				results = xfer.BlockDownload(cmd.Context(), opts, files)
			}

			ctrl.Bus.Close()
			wait()

			var failed error
			for _, r := range results {
				if r.Err != nil {
					logger.Errorf("%s: %v", r.FileName, r.Err)
					failed = r.Err
				}
			}
			if failed != nil {
				return fmt.Errorf("download failed: %w", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useAEM, "aem", false, "use the DAM download entry point")
	cmd.Flags().Int64Var(&partSize, "part-size", 0, "preferred part size in bytes (0 uses the engine default)")
	cmd.Flags().IntVar(&maxConcurrent, "concurrency", 0, "max in-flight parts (0 uses the engine default)")
	return cmd
}
