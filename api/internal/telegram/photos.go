package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // для image.Decode
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// больше модели не нужно, а data URL с такой картинкой может не пройти
	maxPixels    = 4_000_000
	maxFileBytes = 20 << 20
)

func (r *Router) fetchImage(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	b, err := download(ctx, r.httpc, url)
	if err != nil {
		return nil, err
	}
	out, err := fitImage(b, maxPixels)
	if err != nil {
		// не смогли пережать, отдаём как есть
		r.log.Debug("image resize skipped", zap.Error(err))
		return b, nil
	}
	return out, nil
}

// fitImage уменьшает картинку до limit пикселей и перекодирует в JPEG.
// Картинки меньше лимита возвращаются без изменений.
func fitImage(b []byte, limit int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	total := cfg.Width * cfg.Height
	if total <= limit {
		return b, nil
	}

	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	scale := math.Sqrt(float64(limit) / float64(total))
	newW := max(int(float64(cfg.Width)*scale), 1)
	newH := max(int(float64(cfg.Height)*scale), 1)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, scaleDownNN(img, newW, newH), &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func scaleDownNN(src image.Image, newW, newH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW := sb.Dx()
	srcH := sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

func download(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download: status %d: %s", resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxFileBytes {
		return nil, fmt.Errorf("download: file larger than %d bytes", maxFileBytes)
	}
	return b, nil
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
