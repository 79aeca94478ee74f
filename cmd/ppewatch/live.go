package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/capture"
	"github.com/teslashibe/go-ppewatch/pkg/frame"
	"github.com/teslashibe/go-ppewatch/pkg/hub"
	"github.com/teslashibe/go-ppewatch/pkg/server"
	"github.com/teslashibe/go-ppewatch/pkg/stabilize"
	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

var (
	liveSeeds     []string
	liveDashboard string
	liveHeadless  bool
	liveDevice    string
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Watch a camera and show stabilized verdicts",
	Long: `Opens the capture device, makes sure the face gallery exists, optionally
indexes seed faces from S3, then evaluates every Nth frame and overlays the
locked object and face verdicts. Press q in the preview window to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLive(cmd.Context())
	},
}

func init() {
	liveCmd.Flags().StringSliceVar(&liveSeeds, "seed", nil, "Seed faces to index from S3 as bucket/key (repeatable)")
	liveCmd.Flags().StringVar(&liveDashboard, "dashboard", "", "Serve websocket feeds on this address, e.g. :8090")
	liveCmd.Flags().BoolVar(&liveHeadless, "headless", false, "Run without a preview window until interrupted")
	liveCmd.Flags().StringVar(&liveDevice, "device", "", "Camera index or video file (overrides config)")
	rootCmd.AddCommand(liveCmd)
}

func runLive(ctx context.Context) error {
	if liveDevice != "" {
		cfg.Capture.Device = liveDevice
	}

	src, err := capture.OpenDevice(cfg.Capture.Device)
	if err != nil {
		return err
	}

	provider, err := newProvider(ctx)
	if err != nil {
		src.Close()
		return err
	}
	defer provider.Close()

	gallery := cfg.Detection.GalleryID
	if err := provider.CreateGallery(ctx, gallery); err != nil {
		log.Warn("gallery setup failed, face search will report errors", "gallery", gallery, "error", err)
	}

	if len(liveSeeds) > 0 {
		seedGallery(ctx, provider, gallery, liveSeeds)
	}

	adapter, err := newAdapter(provider)
	if err != nil {
		src.Close()
		return err
	}

	opts := []capture.Option{}
	if !liveHeadless {
		opts = append(opts, capture.WithDisplay(capture.NewWindowDisplay(cfg.Capture.WindowTitle)))
	}
	if loc := openLocator(cfg.Capture.Locator); loc != nil {
		defer loc.Close()
		opts = append(opts, capture.WithRegionFinder(locatorFinder{loc}))
	}

	var verdicts, camera *hub.Hub
	if liveDashboard != "" {
		verdicts, camera = hub.New("verdicts"), hub.New("camera")
		go verdicts.Run(ctx)
		go camera.Run(ctx)
		opts = append(opts,
			capture.WithVerdicts(verdicts),
			capture.WithFrames(camera),
			capture.WithAnnotator(capture.AnnotateJPEG))
	}

	engine := stabilize.New(cfg.StabilizeConfig())
	runner := capture.New(cfg.Capture, src, adapter, engine, opts...)

	if liveDashboard != "" {
		srv := server.New(cfg.Server, provider, adapter,
			server.WithFeeds(verdicts, camera),
			server.WithCaptureStats(runner.Stats))
		go func() {
			if err := srv.Listen(ctx, liveDashboard); err != nil {
				log.Error("dashboard stopped", "error", err)
			}
		}()
	}

	err = runner.Run(ctx)
	if errors.Is(err, capture.ErrReadFrame) {
		return fmt.Errorf("camera stopped: %w", err)
	}
	return err
}

// seedGallery indexes bucket/key references into the gallery. A failed
// seed is logged and skipped.
func seedGallery(ctx context.Context, p vision.Provider, gallery string, seeds []string) {
	buckets := newBuckets(ctx)
	checked := map[string]bool{}

	bar := progressbar.NewOptions(len(seeds),
		progressbar.OptionSetDescription("Indexing seed faces"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	for _, seed := range seeds {
		bar.Add(1)

		ref, err := parseObjectRef(seed)
		if err != nil {
			log.Warn("skipping seed", "seed", seed, "error", err)
			continue
		}
		if buckets != nil && !checked[ref.Bucket] {
			if err := buckets.CheckRegion(ctx, ref.Bucket, cfg.Vision.AWS.Region); err != nil {
				log.Warn("skipping seed", "seed", seed, "error", err)
				continue
			}
			checked[ref.Bucket] = true
		}

		faces, err := p.IndexFaceFromObject(ctx, gallery, ref, "")
		if err != nil {
			log.Warn("seed index failed", "seed", seed, "error", err)
			continue
		}
		log.Debug("seed indexed", "seed", seed, "faces", len(faces))
	}
}

func parseObjectRef(s string) (vision.ObjectRef, error) {
	bucket, key, ok := strings.Cut(s, "/")
	if !ok || bucket == "" || key == "" {
		return vision.ObjectRef{}, fmt.Errorf("want bucket/key, got %q", s)
	}
	return vision.ObjectRef{Bucket: bucket, Key: key}, nil
}

// openLocator loads the configured local face finder. A missing model is
// not fatal; the loop then sends full frames.
func openLocator(kind string) frame.Locator {
	var (
		loc frame.Locator
		err error
	)
	switch kind {
	case "cascade":
		loc, err = frame.NewCascadeLocator(cfg.Cascade)
	case "yunet":
		loc, err = frame.NewYuNetLocator(cfg.YuNet)
	default:
		return nil
	}
	if err != nil {
		log.Warn("local face finder unavailable, sending full frames", "locator", kind, "error", err)
		return nil
	}
	return loc
}

// locatorFinder adapts a frame.Locator to capture.RegionFinder.
type locatorFinder struct {
	frame.Locator
}

func (f locatorFinder) Regions(data []byte) ([][]byte, []image.Rectangle, error) {
	return frame.Regions(f.Locator, data)
}
