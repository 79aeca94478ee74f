package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/frame"
	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Manage the face gallery",
}

var galleryCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a gallery (no-op if it exists)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvider(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.CreateGallery(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Gallery %s ready\n", args[0])
		return nil
	},
}

var galleryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a gallery (no-op if it does not exist)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProvider(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.DeleteGallery(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Gallery %s deleted\n", args[0])
		return nil
	},
}

var galleryIndexCmd = &cobra.Command{
	Use:   "index <id> <file>...",
	Short: "Index local face images; the file name is the external id",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := newProvider(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		gallery, files := args[0], args[1:]
		bar := progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Indexing faces"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		var indexed, failed int
		for _, path := range files {
			bar.Add(1)
			if ctx.Err() != nil {
				break
			}
			n, err := indexFile(cmd, p, gallery, path)
			if err != nil {
				failed++
				log.Warn("index failed", "file", path, "error", err)
				continue
			}
			indexed += n
		}
		bar.Finish()

		fmt.Fprintf(os.Stderr, "\nIndexed %d faces from %d files (%d failed)\n", indexed, len(files), failed)
		if failed == len(files) {
			return fmt.Errorf("no files indexed")
		}
		return nil
	},
}

func indexFile(cmd *cobra.Command, p vision.Provider, gallery, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	img, err := frame.Normalize(raw)
	if err != nil {
		return 0, err
	}
	externalID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	faces, err := p.IndexFace(cmd.Context(), gallery, img, externalID)
	if err != nil {
		return 0, err
	}
	return len(faces), nil
}

var galleryIndexS3Cmd = &cobra.Command{
	Use:   "index-s3 <id> <bucket> <key>...",
	Short: "Index face images stored in S3; the key is the external id",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		gallery, bucket, keys := args[0], args[1], args[2:]

		if b := newBuckets(ctx); b != nil {
			if err := b.CheckRegion(ctx, bucket, cfg.Vision.AWS.Region); err != nil {
				return err
			}
		}

		p, err := newProvider(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		seeds := make([]string, len(keys))
		for i, k := range keys {
			seeds[i] = bucket + "/" + k
		}
		seedGallery(ctx, p, gallery, seeds)
		return nil
	},
}

func init() {
	galleryCmd.AddCommand(galleryCreateCmd, galleryDeleteCmd, galleryIndexCmd, galleryIndexS3Cmd)
	rootCmd.AddCommand(galleryCmd)
}
