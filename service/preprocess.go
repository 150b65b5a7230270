package service

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/TIANLI0/DetectKit/config"
	"github.com/TIANLI0/DetectKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var ErrUndecodable = errors.New("无法读取图像")

// Preprocessor 上传前校验图片并把过大的图纸缩小
type Preprocessor struct {
	maxDimension int
	jpegQuality  int
}

func NewPreprocessor(cfg *config.PreprocessConfig) *Preprocessor {
	return &Preprocessor{
		maxDimension: cfg.MaxDimension,
		jpegQuality:  cfg.JPEGQuality,
	}
}

// Prepare 返回要上传的字节，未超过尺寸限制时原样返回
func (p *Preprocessor) Prepare(data []byte, filename string) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrUndecodable
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrUndecodable
	}

	width := img.Cols()
	height := img.Rows()
	if p.maxDimension <= 0 || max(width, height) <= p.maxDimension {
		return data, nil
	}

	resized, scale := smartResize(&img, p.maxDimension)
	defer resized.Close()

	buf, err := p.encode(resized, filename)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())

	utils.Logger.Info("image downscaled",
		zap.String("filename", filename),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Float64("scale", scale),
		zap.Int("bytes", len(out)))

	return out, nil
}

func (p *Preprocessor) encode(img gocv.Mat, filename string) (*gocv.NativeByteBuffer, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return gocv.IMEncode(gocv.PNGFileExt, img)
	case ".bmp":
		return gocv.IMEncode(gocv.FileExt(".bmp"), img)
	default:
		quality := p.jpegQuality
		if quality <= 0 || quality > 100 {
			quality = 95
		}
		return gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	}
}

// smartResize 按最长边缩放到 maxSize
func smartResize(img *gocv.Mat, maxSize int) (gocv.Mat, float64) {
	width := img.Cols()
	height := img.Rows()
	maxDim := max(width, height)
	if maxDim <= maxSize {
		return img.Clone(), 1.0
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := max(1, int(float64(width)*scale))
	newHeight := max(1, int(float64(height)*scale))

	resized := gocv.NewMat()
	gocv.Resize(*img, &resized, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationArea)

	return resized, scale
}
