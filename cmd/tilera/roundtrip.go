package main

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/tilera"
)

func newRoundtripCmd(a *app) *cobra.Command {
	var flip bool
	cmd := &cobra.Command{
		Use:   "roundtrip IN OUT",
		Short: "Upload an image, blit it on the GPU and write the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, _, err := a.cfg.contextOptions()
			if err != nil {
				return err
			}
			ctx, err := tilera.NewHeadless(opts...)
			if err != nil {
				return err
			}
			defer ctx.Destroy()
			return roundtrip(ctx, args[0], args[1], flip)
		},
	}
	cmd.Flags().BoolVar(&flip, "flip", false, "flip the image vertically during the blit")
	return cmd
}

func roundtrip(ctx *tilera.Context, in, out string, flip bool) error {
	src, err := readImage(in)
	if err != nil {
		return err
	}
	dst, err := blitImage(ctx, src, flip)
	if err != nil {
		return err
	}
	return writeImage(out, dst)
}

func readImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return toRGBA(img), nil
}

// toRGBA converts img to a tightly packed RGBA image at the origin.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// blitImage uploads img, blits it into a second texture and reads it back.
func blitImage(ctx *tilera.Context, img *image.RGBA, flip bool) (*image.RGBA, error) {
	format, err := tilera.FormatByName("rgba8")
	if err != nil {
		return nil, err
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	src, err := ctx.CreateTexture(tilera.TextureParams{
		Dimensions:  2,
		W:           w,
		H:           h,
		Format:      format,
		BlitSrc:     true,
		InitialData: img.Pix,
	})
	if err != nil {
		return nil, err
	}
	defer src.Destroy()
	dst, err := ctx.CreateTexture(tilera.TextureParams{
		Dimensions: 2,
		W:          w,
		H:          h,
		Format:     format,
		BlitDst:    true,
	})
	if err != nil {
		return nil, err
	}
	defer dst.Destroy()

	dstRect := tilera.Rect{X1: w, Y1: h}
	if flip {
		dstRect.Y0, dstRect.Y1 = h, 0
	}
	if err := ctx.Blit(dst, src, dstRect, tilera.Rect{X1: w, Y1: h}); err != nil {
		return nil, err
	}

	res := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := ctx.Download(tilera.DownloadParams{Texture: dst, Dst: res.Pix, Stride: res.Stride}); err != nil {
		return nil, err
	}
	return res, nil
}

func writeImage(path string, img image.Image) (err error) {
	var encode func(*bufio.Writer) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		encode = func(w *bufio.Writer) error { return png.Encode(w, img) }
	case ".bmp":
		encode = func(w *bufio.Writer) error { return bmp.Encode(w, img) }
	case ".tif", ".tiff":
		encode = func(w *bufio.Writer) error { return tiff.Encode(w, img, nil) }
	case ".jpg", ".jpeg":
		encode = func(w *bufio.Writer) error { return jpeg.Encode(w, img, &jpeg.Options{Quality: 95}) }
	default:
		return fmt.Errorf("encode %s: unsupported extension", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	bw := bufio.NewWriter(f)
	if err := encode(bw); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return bw.Flush()
}
