// Package imaging は画像のリサイズと反復再エンコードによる圧縮を提供する。
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

const (
	// maxDimensionPx は長辺の最大ピクセル数。これを超える画像は縮小する。
	maxDimensionPx = 800
	// defaultQuality はJPEG圧縮の初期品質。
	defaultQuality = 0.8
	// qualityFloor は品質の下限。これ以上下げずにベストエフォート結果を返す。
	qualityFloor = 0.1
	// qualityDecay は反復ごとの品質の減衰率。
	qualityDecay = 0.8
	// maxIterations は反復回数の上限。品質フロアへの到達で通常は先に停止する。
	maxIterations = 12
)

// DecodeError は画像のデコード失敗を表す。
// 非対応フォーマットや破損データが原因であり、リトライしても解決しない。
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError は画像のエンコード失敗を表す。
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode image: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// SourceFile は圧縮対象の元ファイルを表す。
type SourceFile struct {
	Name string
	MIME string
	Data []byte
}

// Options は圧縮のパラメーター。
type Options struct {
	// MaxSizeKB は目標サイズ（KB）。0以下の場合はサイズ制限なし。
	MaxSizeKB int
	// Quality はJPEG圧縮の初期品質（0.0〜1.0）。0の場合はデフォルト値を使用する。
	Quality float64
}

// Result は圧縮結果を表す。
type Result struct {
	Data       []byte
	MIME       string
	Width      int
	Height     int
	Quality    float64 // 最終的に使用した品質。JPEG以外は常に初期値
	Iterations int     // 再エンコードの実行回数
	BudgetMet  bool    // 目標サイズを満たしたか。falseはベストエフォート結果
}

// Compress は画像を長辺800px以内に縮小し、目標サイズを満たすまで品質を下げながら
// 再エンコードする。品質が下限に達してもサイズを満たせない場合はエラーにせず、
// 最後の結果をBudgetMet=falseで返す。
//
// 縮小はアスペクト比を維持し、拡大は行わない。JPEG以外（PNG/GIF）は品質の
// 調整ができないため1回だけエンコードする。
func Compress(ctx context.Context, src SourceFile, opts Options) (*Result, error) {
	img, format, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	img = scaleDown(img)
	bounds := img.Bounds()

	quality := opts.Quality
	if quality <= 0 {
		quality = defaultQuality
	}

	maxSizeBytes := opts.MaxSizeKB * 1024

	switch format {
	case "jpeg":
		return compressJPEG(ctx, img, bounds, quality, maxSizeBytes)
	case "png":
		return encodePNG(img, bounds, maxSizeBytes)
	case "gif":
		return encodeGIF(img, bounds, maxSizeBytes)
	default:
		return nil, &DecodeError{Err: fmt.Errorf("unsupported format: %s", format)}
	}
}

// compressJPEG は目標サイズを満たすまで品質を減衰させながら再エンコードする。
// 各反復では前回のエンコード結果をデコードし直してから再エンコードする。
func compressJPEG(ctx context.Context, img image.Image, bounds image.Rectangle, quality float64, maxSizeBytes int) (*Result, error) {
	var buf bytes.Buffer
	iterations := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(quality * 100)}); err != nil {
			return nil, &EncodeError{Err: err}
		}
		iterations++

		if maxSizeBytes <= 0 || buf.Len() <= maxSizeBytes {
			return jpegResult(buf.Bytes(), bounds, quality, iterations, true), nil
		}

		nextQuality := quality * qualityDecay
		if nextQuality < qualityFloor || iterations >= maxIterations {
			return jpegResult(buf.Bytes(), bounds, quality, iterations, false), nil
		}
		quality = nextQuality

		// 次の反復は圧縮済み出力を入力とする
		reDecoded, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		img = reDecoded
	}
}

func jpegResult(data []byte, bounds image.Rectangle, quality float64, iterations int, budgetMet bool) *Result {
	out := make([]byte, len(data))
	copy(out, data)
	return &Result{
		Data:       out,
		MIME:       "image/jpeg",
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Quality:    quality,
		Iterations: iterations,
		BudgetMet:  budgetMet,
	}
}

// encodePNG はPNGを最大圧縮レベルで1回エンコードする。
// PNGはロスレスで品質の調整ができないため反復はしない。
func encodePNG(img image.Image, bounds image.Rectangle, maxSizeBytes int) (*Result, error) {
	var buf bytes.Buffer
	encoder := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return &Result{
		Data:       buf.Bytes(),
		MIME:       "image/png",
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Quality:    1.0,
		Iterations: 1,
		BudgetMet:  maxSizeBytes <= 0 || buf.Len() <= maxSizeBytes,
	}, nil
}

// encodeGIF はGIFを1回エンコードする。
func encodeGIF(img image.Image, bounds image.Rectangle, maxSizeBytes int) (*Result, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		return nil, &EncodeError{Err: err}
	}
	return &Result{
		Data:       buf.Bytes(),
		MIME:       "image/gif",
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Quality:    1.0,
		Iterations: 1,
		BudgetMet:  maxSizeBytes <= 0 || buf.Len() <= maxSizeBytes,
	}, nil
}

// scaleDown は長辺がmaxDimensionPxを超える画像をアスペクト比を維持して縮小する。
// 上限以内の画像はそのまま返す（拡大はしない）。
func scaleDown(img image.Image) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxDimensionPx && height <= maxDimensionPx {
		return img
	}

	var newWidth, newHeight int
	if width >= height {
		newWidth = maxDimensionPx
		newHeight = int(float64(height) * float64(maxDimensionPx) / float64(width))
	} else {
		newHeight = maxDimensionPx
		newWidth = int(float64(width) * float64(maxDimensionPx) / float64(height))
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
