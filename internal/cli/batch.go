package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/imageio"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

// imageExts are the extensions batch picks up when scanning directories.
var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// batchJob pairs an input image with its mask and output path.
type batchJob struct {
	image   string
	mask    string
	output  string
	renamed bool // output was suffixed because another job writes the default name
}

// batchCommand creates the batch command for infilling many images.
func (c *CLI) batchCommand() *cobra.Command {
	var (
		flags      infillFlags
		maskSuffix string
		outDir     string
		jobs       int
	)

	cmd := &cobra.Command{
		Use:   "batch <dir-or-image>...",
		Short: "Fill many images, each with its own mask",
		Long: `Fill many images concurrently.

Each image "name.ext" is paired with the mask "name<suffix>.ext" (or
"name<suffix>.png") next to it. Directories are scanned for images; files
that are themselves masks are skipped. Images run independently: one failure
does not stop the rest.`,
		Example: `  # Fill every image in a directory that has a matching _mask file
  patchfill batch ./shots --out-dir ./clean

  # Four at a time, reproducibly
  patchfill batch a.png b.png --jobs 4 --seed 7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd, c.config.Infill)
			if err != nil {
				return err
			}
			// One format for the whole batch.
			if opts.Format == "" {
				opts.Format = imageio.FormatPNG
			}
			batch, skipped, err := collectBatch(args, maskSuffix, outDir, opts)
			if err != nil {
				return err
			}
			for _, s := range skipped {
				printWarning("Skipping %s: no mask found", s)
			}
			for _, job := range batch {
				if job.renamed {
					printWarning("Writing %s to %s: the default name is taken by another image", job.image, job.output)
				}
			}
			if len(batch) == 0 {
				return errors.New(errors.ErrCodeInvalidInput, "no images with masks found")
			}
			return c.runBatch(cmd, batch, opts, jobs, flags.noCache)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&maskSuffix, "mask-suffix", "_mask", "suffix identifying mask files")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "output directory (default: next to each input)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "images processed concurrently")

	return cmd
}

// runBatch executes the batch and prints a summary table.
func (c *CLI) runBatch(cmd *cobra.Command, batch []batchJob, opts pipeline.Options, jobs int, noCache bool) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	inputs := make([]pipeline.Input, len(batch))
	for i, job := range batch {
		in, err := pipeline.InputFromFiles(job.image, job.mask)
		if err != nil {
			return err
		}
		inputs[i] = in
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	opts.Logger = logger
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Filling %d images...", len(batch)))
	spinner.Start()
	start := time.Now()
	results, err := runner.ExecuteBatch(ctx, inputs, opts, jobs)
	spinner.Stop()
	if err != nil {
		return err
	}

	failed := 0
	rows := make([][]string, 0, len(results))
	for i, res := range results {
		job := batch[i]
		if res.Err == nil {
			if werr := writeOutput(job.output, res.Result.Encoded); werr != nil {
				res.Err = werr
			}
		}
		if res.Err != nil {
			failed++
			logger.Debug("batch item failed", "input", job.image, "error", res.Err)
			rows = append(rows, []string{filepath.Base(job.image), "", "", "", "", StyleWarning.Render(errors.UserMessage(res.Err))})
			continue
		}
		r := res.Result
		rows = append(rows, []string{
			filepath.Base(job.image),
			fmt.Sprintf("%d×%d", r.Stats.Width, r.Stats.Height),
			fmt.Sprint(r.Stats.Holes),
			fmt.Sprint(len(r.Levels)),
			r.Stats.InfillTime.Round(time.Millisecond).String(),
			cacheLabel(r.CacheInfo.ResultHit),
		})
	}

	fmt.Println(renderTable([]string{"Image", "Size", "Holes", "Levels", "Time", "Status"}, rows, 2, 3, 4))
	elapsed := time.Since(start).Round(time.Millisecond)
	if failed > 0 {
		printWarning("%d of %d images failed (%s)", failed, len(results), elapsed)
		return fmt.Errorf("%d images failed", failed)
	}
	printSuccess("Filled %d images (%s)", len(results), elapsed)
	return nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// collectBatch expands args into jobs. Images without a mask are returned
// in skipped unless masks come from alpha. An image named twice runs once,
// and jobs whose outputs would collide get distinct "-N" suffixed names.
func collectBatch(args []string, maskSuffix, outDir string, opts pipeline.Options) (jobs []batchJob, skipped []string, err error) {
	var images []string
	for _, arg := range args {
		if err := errors.ValidatePath(arg); err != nil {
			return nil, nil, err
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "%s", arg)
		}
		if !info.IsDir() {
			images = append(images, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !isImageFile(e.Name()) {
				continue
			}
			if isMaskFile(e.Name(), maskSuffix) {
				continue
			}
			images = append(images, filepath.Join(arg, e.Name()))
		}
	}

	seen := make(map[string]bool)
	taken := make(map[string]bool)
	for _, img := range images {
		if seen[filepath.Clean(img)] {
			continue
		}
		seen[filepath.Clean(img)] = true

		job := batchJob{image: img}
		if !opts.MaskFromAlpha {
			job.mask = findMask(img, maskSuffix)
			if job.mask == "" {
				skipped = append(skipped, img)
				continue
			}
		}
		job.output, job.renamed = uniquePath(batchOutputPath(img, outDir, opts.Format), taken)
		jobs = append(jobs, job)
	}
	return jobs, skipped, nil
}

// uniquePath returns path, or path with a "-N" suffix before the extension
// when it is already in taken, and records the result in taken.
func uniquePath(path string, taken map[string]bool) (string, bool) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	out := path
	for n := 2; taken[filepath.Clean(out)]; n++ {
		out = fmt.Sprintf("%s-%d%s", base, n, ext)
	}
	taken[filepath.Clean(out)] = true
	return out, out != path
}

func isImageFile(name string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(name)))
}

func isMaskFile(name, suffix string) bool {
	return suffix != "" && strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), suffix)
}

// findMask returns the mask path for img, or "" if none exists.
func findMask(img, suffix string) string {
	ext := filepath.Ext(img)
	base := strings.TrimSuffix(img, ext)
	for _, candidate := range []string{base + suffix + ext, base + suffix + ".png"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// batchOutputPath places the default output name in outDir when set.
func batchOutputPath(img, outDir, format string) string {
	out := defaultOutputPath(img, format)
	if outDir != "" {
		out = filepath.Join(outDir, filepath.Base(out))
	}
	return out
}
