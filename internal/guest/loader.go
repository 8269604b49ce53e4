package guest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/uihost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
	"github.com/GriffinCanCode/uihost/internal/shared/utils"
)

var (
	// ErrUnsupported is returned for payloads that are neither WebAssembly
	// nor script text
	ErrUnsupported = errors.New("unsupported guest payload")
	// ErrInvalid is returned for empty, oversized or corrupt payloads
	ErrInvalid = errors.New("invalid guest payload")
)

const (
	mimeWasm = "application/wasm"
	mimeGzip = "application/gzip"
	mimeZstd = "application/zstd"
	mimeText = "text/plain"
	mimeJS   = "text/javascript"
)

// StatusError reports a non-2xx response from a guest origin
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Code)
}

// Source is a guest ready to be handed to an engine
type Source struct {
	Name   string
	Engine sandbox.Engine
	Code   []byte
	Digest string
	Origin string
	// MIME is the sniffed type of the payload before decompression
	MIME string
}

// Config controls fetching and size limits
type Config struct {
	FetchTimeout time.Duration
	FetchRetries int
	MaxSize      int
}

// DefaultConfig returns loader defaults
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 30 * time.Second,
		FetchRetries: 3,
		MaxSize:      utils.MaxGuestSize,
	}
}

// Loader turns files, URLs and raw bytes into Sources
type Loader struct {
	config   Config
	client   *resty.Client
	breakers *resilience.Group
	hasher   *utils.Hasher
	logger   *zap.Logger
}

// NewLoader creates a loader. Remote fetches go through a retrying
// transport and a per-host circuit breaker.
func NewLoader(config Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxSize <= 0 {
		config.MaxSize = utils.MaxGuestSize
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = config.FetchRetries
	retry.RetryWaitMin = 100 * time.Millisecond
	retry.RetryWaitMax = 2 * time.Second
	retry.Logger = leveled{logger.Named("fetch")}

	client := resty.NewWithClient(retry.StandardClient()).
		SetTimeout(config.FetchTimeout).
		SetResponseBodyLimit(config.MaxSize).
		SetLogger(logger.Named("fetch").Sugar()).
		SetHeader("User-Agent", "uihost/1.0")

	breakers := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var status *StatusError
			if errors.As(err, &status) {
				return status.Code < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Guest origin breaker changed state",
				zap.String("origin", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	return &Loader{
		config:   config,
		client:   client,
		breakers: breakers,
		hasher:   utils.DefaultHasher(),
		logger:   logger,
	}
}

// Origins reports breaker state per remote host
func (l *Loader) Origins() []resilience.NamedState {
	return l.breakers.States()
}

// Load resolves ref as an http(s) URL or a file path
func (l *Loader) Load(ctx context.Context, ref string) (*Source, error) {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return l.Fetch(ctx, u)
	}
	return l.LoadFile(ref)
}

// LoadFile reads a guest from disk
func (l *Loader) LoadFile(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalid, path)
	}
	if info.Size() > int64(l.config.MaxSize) {
		return nil, fmt.Errorf("%w: %s size %d bytes exceeds maximum %d bytes", ErrInvalid, path, info.Size(), l.config.MaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src, err := l.FromBytes(NameFromPath(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.Origin = path
	return src, nil
}

// Fetch downloads a guest
func (l *Loader) Fetch(ctx context.Context, u *url.URL) (*Source, error) {
	start := time.Now()
	body, err := resilience.Do(l.breakers.Get(u.Host), func() ([]byte, error) {
		resp, err := l.client.R().SetContext(ctx).Get(u.String())
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", u.Redacted(), err)
		}
		if resp.IsError() {
			return nil, &StatusError{URL: u.Redacted(), Code: resp.StatusCode()}
		}
		return resp.Body(), nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Fetched guest",
		zap.String("url", u.Redacted()),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))

	src, err := l.FromBytes(NameFromPath(u.Path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u.Redacted(), err)
	}
	src.Origin = u.String()
	return src, nil
}

// FromBytes decompresses and classifies a payload
func (l *Loader) FromBytes(name string, data []byte) (*Source, error) {
	if err := utils.ValidateSize(data, l.config.MaxSize, "guest"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	sniffed := mimetype.Detect(data)
	code, err := l.decompress(sniffed, data)
	if err != nil {
		return nil, err
	}

	engine, err := classify(mimetype.Detect(code), name)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = string(engine) + "-" + utils.ShortHash(l.hasher.Hash(code))
	}

	return &Source{
		Name:   name,
		Engine: engine,
		Code:   code,
		Digest: l.hasher.Hash(code),
		MIME:   sniffed.String(),
	}, nil
}

func (l *Loader) decompress(m *mimetype.MIME, data []byte) ([]byte, error) {
	var r io.Reader
	switch {
	case m.Is(mimeGzip):
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrInvalid, err)
		}
		defer gz.Close()
		r = gz
	case m.Is(mimeZstd):
		zr, err := zstd.NewReader(bytes.NewReader(data),
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(uint64(l.config.MaxSize)))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrInvalid, err)
		}
		defer zr.Close()
		r = zr
	default:
		return data, nil
	}

	out, err := io.ReadAll(io.LimitReader(r, int64(l.config.MaxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrInvalid, err)
	}
	if err := utils.ValidateSize(out, l.config.MaxSize, "decompressed guest"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return out, nil
}

func classify(m *mimetype.MIME, name string) (sandbox.Engine, error) {
	if m.Is(mimeWasm) {
		return sandbox.EngineWasm, nil
	}
	for p := m; p != nil; p = p.Parent() {
		if p.Is(mimeJS) || p.Is(mimeText) {
			return sandbox.EngineJS, nil
		}
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupported, m.String(), name)
}

// NameFromPath derives a document name from a file or URL path, dropping
// compression and guest extensions
func NameFromPath(path string) string {
	base := filepath.Base(path)
	if base == "." || base == "/" {
		return ""
	}
	for _, ext := range []string{".gz", ".zst", ".wasm", ".js", ".mjs"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// leveled adapts zap to retryablehttp's logger
type leveled struct {
	l *zap.Logger
}

func (z leveled) Error(msg string, kv ...interface{}) { z.l.Sugar().Errorw(msg, kv...) }
func (z leveled) Info(msg string, kv ...interface{})  { z.l.Sugar().Debugw(msg, kv...) }
func (z leveled) Debug(msg string, kv ...interface{}) { z.l.Sugar().Debugw(msg, kv...) }
func (z leveled) Warn(msg string, kv ...interface{})  { z.l.Sugar().Warnw(msg, kv...) }
