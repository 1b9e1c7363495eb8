package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/11-rizwan/health-mirror-stage-3/server/internal/config"
	"github.com/11-rizwan/health-mirror-stage-3/server/internal/vision"
)

const (
	maxMsgSize   = 16 * 1024 * 1024
	jpegQuality  = 90
	pollInterval = 250 * time.Millisecond
)

// ErrNotServing is returned by WaitReady when the sidecar never reported SERVING.
var ErrNotServing = errors.New("inference: model service not serving")

// Client calls the inference sidecar. It implements vision.Source and
// emotion.Model. Client is safe for concurrent use.
type Client struct {
	conn        *grpc.ClientConn
	service     string
	callTimeout time.Duration
}

// Dial creates a Client for cfg.Endpoint. The connection is established
// lazily; use WaitReady to block until the model is loaded.
func Dial(cfg config.InferenceConfig, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	conn, err := grpc.NewClient(cfg.Endpoint, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("inference: dial %s: %w", cfg.Endpoint, err)
	}
	return newClient(conn, cfg), nil
}

func newClient(conn *grpc.ClientConn, cfg config.InferenceConfig) *Client {
	return &Client{
		conn:        conn,
		service:     cfg.Service,
		callTimeout: cfg.CallTimeout,
	}
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// WaitReady polls the sidecar health service until it reports SERVING for
// the configured service name or ctx expires.
func (c *Client) WaitReady(ctx context.Context) error {
	hc := healthpb.NewHealthClient(c.conn)
	t := time.NewTicker(pollInterval)
	defer t.Stop()

	var last error
	for {
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: c.service})
		switch {
		case err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING:
			slog.Info("inference: model service ready", "service", c.service)
			return nil
		case err != nil:
			last = err
		default:
			last = fmt.Errorf("status %s", resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNotServing, last)
		case <-t.C:
		}
	}
}

// Detect implements vision.Source.
func (c *Client) Detect(ctx context.Context, frame image.Image) (vision.Landmarks, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("inference: encode frame: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp := &structpb.ListValue{}
	if err := c.conn.Invoke(ctx, c.method("DetectLandmarks"), wrapperspb.Bytes(buf.Bytes()), resp); err != nil {
		return nil, fmt.Errorf("inference: detect landmarks: %w", err)
	}
	if len(resp.GetValues()) == 0 {
		return nil, nil
	}

	xy, err := numbers(resp)
	if err != nil {
		return nil, fmt.Errorf("inference: detect landmarks: %w", err)
	}
	b := frame.Bounds()
	return vision.FromNormalized(xy, b.Dx(), b.Dy())
}

// Classify implements emotion.Model.
func (c *Client) Classify(ctx context.Context, patch []float64) ([]float64, error) {
	req := &structpb.ListValue{Values: make([]*structpb.Value, len(patch))}
	for i, v := range patch {
		req.Values[i] = structpb.NewNumberValue(v)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp := &structpb.ListValue{}
	if err := c.conn.Invoke(ctx, c.method("ClassifyEmotion"), req, resp); err != nil {
		return nil, fmt.Errorf("inference: classify emotion: %w", err)
	}
	probs, err := numbers(resp)
	if err != nil {
		return nil, fmt.Errorf("inference: classify emotion: %w", err)
	}
	return probs, nil
}

func (c *Client) method(name string) string {
	return "/" + c.service + "/" + name
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

// numbers unpacks a list of number values.
func numbers(l *structpb.ListValue) ([]float64, error) {
	out := make([]float64, len(l.GetValues()))
	for i, v := range l.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("value %d is not a number", i)
		}
		out[i] = n.NumberValue
	}
	return out, nil
}
