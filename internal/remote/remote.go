// Package remote implements assetsync.ManifestClient and assetsync.ContentFetcher
// over the transports an asset server can be reached by.
//
//   - HTTPClient: the JSON enumerate/get API served by the dev server
//   - OCIRemote: an OCI image whose config label carries the manifest and whose
//     layers carry one zstd blob per resource
//
// RetryFetcher and RetryManifest add bounded retries to either transport.
package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/aweris/assetsync"
)

// Kinds accepted by Open.
const (
	KindHTTP = "http"
	KindOCI  = "oci"
)

// Config selects and configures a transport.
type Config struct {
	Kind    string
	URL     string
	Ref     string
	Timeout time.Duration
	Retry   RetryOptions
}

// Open builds the remote named by cfg.Kind, wrapped with retries.
func Open(cfg Config) (assetsync.Remote, error) {
	var (
		rm  assetsync.Remote
		err error
	)
	switch strings.ToLower(cfg.Kind) {
	case KindHTTP, "":
		rm, err = NewHTTPClient(cfg.URL, NewTransportClient(cfg.Timeout))
	case KindOCI:
		rm, err = NewOCIRemote(cfg.Ref, NewDefaultAuthenticator())
	default:
		return nil, fmt.Errorf("unknown remote kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(rm, cfg.Retry), nil
}
