package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// downloadFunc copies at most limit bytes from url into w.
type downloadFunc func(ctx context.Context, url string, w io.Writer, limit int64) error

var downloadClient = &http.Client{Timeout: 2 * time.Minute}

func httpDownload(ctx context.Context, url string, w io.Writer, limit int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: unexpected status %s", resp.Status)
	}
	n, err := io.Copy(w, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return err
	}
	if n > limit {
		return fmt.Errorf("download: file exceeds %d bytes", limit)
	}
	return nil
}
