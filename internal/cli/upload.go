package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescale/xferengine/internal/controller"
	"github.com/rescale/xferengine/internal/model"
	"github.com/rescale/xferengine/internal/stages"
	"github.com/rescale/xferengine/internal/xfer"
	"github.com/rescale/xferengine/internal/xferhttp"
)

func newUploadCmd() *cobra.Command {
	var (
		useAEM        bool
		formProtocol  bool
		partSize      int64
		maxConcurrent int
	)

	cmd := &cobra.Command{
		Use:   "upload <local-file> <target-url>",
		Short: "Upload a local file to a pre-signed target URL, or a DAM folder URL with --aem",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := model.NewURLAsset("file://"+args[0], nil, nil)
			if err != nil {
				return err
			}
			tgt, err := model.NewURLAsset(args[1], nil, nil)
			if err != nil {
				return err
			}

			ctrl := controller.New()
			wait := attachProgress(ctrl)

			opts := xfer.UploadOptions{Options: xfer.Options{Controller: ctrl}}
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
			if formProtocol {
				opts.Protocol = stages.ProtocolForm
			}

			files := []xfer.FileTransfer{{Source: src, Target: tgt}}

			var results []xfer.Result
			if useAEM {
				results, err = xfer.AEMUpload(cmd.Context(), opts, files)
			} else {
				results, err = xfer.BlockUpload(cmd.Context(), opts, files)
			}

			ctrl.Bus.Close()
			wait()

			for _, r := range results {
				if r.Err != nil {
					logger.Errorf("%s: %v", r.FileName, r.Err)
				}
			}
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useAEM, "aem", false, "use the DAM initiate/complete handshake instead of a direct pre-signed PUT")
	cmd.Flags().BoolVar(&formProtocol, "form", false, "chunk the upload as multipart/form-data POSTs to a single endpoint")
	cmd.Flags().Int64Var(&partSize, "part-size", 0, "preferred part size in bytes (0 uses the engine default)")
	cmd.Flags().IntVar(&maxConcurrent, "concurrency", 0, "max in-flight parts (0 uses the engine default)")
	return cmd
}
