package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/imageio"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

// filledSuffix is appended to the input name when no output path is given.
const filledSuffix = "_filled"

// fillCommand creates the fill command for infilling a single image.
func (c *CLI) fillCommand() *cobra.Command {
	var (
		flags  infillFlags
		mask   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "fill <image>",
		Short: "Fill the masked region of an image",
		Long: `Fill the masked region of an image with content synthesized from the rest of it.

The mask is an image of the same size; white pixels mark the region to fill.
Use --mask-from-alpha instead to fill the transparent pixels of the image.`,
		Example: `  # Remove an object
  patchfill fill photo.jpg --mask photo_mask.png -o clean.jpg

  # Reproducible output (cached for later runs)
  patchfill fill photo.png -m mask.png --seed 42

  # Fill transparent pixels
  patchfill fill cutout.png --mask-from-alpha`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if mask == "" && !flags.maskFromAlpha {
				return errors.New(errors.ErrCodeInvalidInput, "--mask is required unless --mask-from-alpha is set")
			}
			opts, err := flags.options(cmd, c.config.Infill)
			if err != nil {
				return err
			}
			if output == "" {
				output = defaultOutputPath(input, opts.Format)
			}
			if opts.Format == "" {
				opts.Format = imageio.FormatFromPath(output)
			}
			return c.runFill(cmd, input, mask, output, opts, flags.noCache)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&mask, "mask", "m", "", "mask image (white = fill)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <image>"+filledSuffix+".png)")

	return cmd
}

// runFill executes a single fill and reports the result.
func (c *CLI) runFill(cmd *cobra.Command, input, mask, output string, opts pipeline.Options, noCache bool) error {
	ctx := cmd.Context()
	if err := errors.ValidatePath(output); err != nil {
		return err
	}

	name := filepath.Base(input)
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Reading %s...", name))
	spinner.Start()

	in, err := pipeline.InputFromFiles(input, mask)
	if err != nil {
		spinner.StopWithError("Could not read input")
		return err
	}
	prog.step("read " + name)

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		spinner.StopWithError("Could not open cache")
		return err
	}
	defer runner.Close()

	opts.Logger = logger
	spinner.Update(fmt.Sprintf("Filling %s...", name))

	result, err := runner.Execute(ctx, in, opts)
	if err != nil {
		spinner.StopWithError("Fill failed")
		return err
	}
	spinner.Stop()
	prog.step("infill")

	if err := os.WriteFile(output, result.Encoded, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	prog.done("filled " + name)

	printSuccess("Filled %s", StyleHighlight.Render(name))
	printStats(result.Stats.Width, result.Stats.Height, result.Stats.Holes, len(result.Levels), result.CacheInfo.ResultHit)
	printFile(output)
	if !result.CacheInfo.Cacheable {
		printNewline()
		printNextStep("Reproduce this result", fmt.Sprintf("%s fill %s --seed %d", appName, input, result.Seed))
	}
	return nil
}

// defaultOutputPath derives "<dir>/<name>_filled.<ext>" from the input path.
// The extension follows format when set, else the input, falling back to
// PNG for inputs that cannot be written (GIF, WebP).
func defaultOutputPath(input, format string) string {
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext)
	switch {
	case format == imageio.FormatJPEG:
		ext = ".jpg"
	case format != "":
		ext = "." + format
	case imageio.FormatFromPath(input) == imageio.FormatPNG:
		ext = ".png"
	}
	return base + filledSuffix + ext
}
