package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// chunkSizeBytes is 20ms of 16kHz mono s16 PCM, the frame size streamed to
// the recognition service.
const chunkSizeBytes = 640

// Capture streams fixed-size PCM chunks from one Pulse source and feeds the
// level meter. It satisfies the recognizer's Source contract: Start, Chunks,
// Stop, with Stop safe to call on every exit path.
type Capture struct {
	preferred string
	meter     *LevelMeter

	mu      sync.Mutex
	client  *pulse.Client
	stream  *pulse.RecordStream
	chunks  chan []byte
	stopCh  chan struct{}
	pending []byte
	started bool
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// NewCapture builds a capture for the configured input preference. meter may
// be nil when level telemetry is not wanted.
func NewCapture(preferred string, meter *LevelMeter) *Capture {
	return &Capture{preferred: preferred, meter: meter}
}

// Start resolves the input device and opens a 16kHz mono s16 record stream.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started && !c.stopped {
		return fmt.Errorf("capture already started")
	}

	selection, err := SelectDevice(ctx, c.preferred)
	if err != nil {
		return err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("prepmate"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(selection.Device.ID)
	if err != nil {
		client.Close()
		return fmt.Errorf("resolve source %q: %w", selection.Device.ID, err)
	}

	c.client = client
	c.chunks = make(chan []byte, 128)
	c.stopCh = make(chan struct{})
	c.pending = nil
	c.started = true
	c.stopped = false
	c.bytes.Store(0)

	writer := pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(16000),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("prepmate answer capture"),
	)
	if err != nil {
		client.Close()
		c.client = nil
		return fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

// Chunks returns the PCM stream as fixed-size byte slices. The channel closes
// on Stop.
func (c *Capture) Chunks() <-chan []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunks
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly
// once. Idempotent.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.started || c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	stream := c.stream
	client := c.client
	c.stream = nil
	c.client = nil
	c.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	if client != nil {
		client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	pending := append([]byte(nil), c.pending...)
	c.pending = nil
	c.mu.Unlock()

	if len(pending) > 0 {
		chunk := make([]byte, len(pending))
		copy(chunk, pending)
		select {
		case c.chunks <- chunk:
		default:
		}
	}

	close(c.chunks)
	return nil
}

// onPCM receives raw Pulse frames, meters them, and emits chunkSizeBytes
// slices to the chunk channel.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)
	chunks := make([][]byte, 0, len(c.pending)/chunkSizeBytes)
	for len(c.pending) >= chunkSizeBytes {
		chunk := make([]byte, chunkSizeBytes)
		copy(chunk, c.pending[:chunkSizeBytes])
		c.pending = c.pending[chunkSizeBytes:]
		chunks = append(chunks, chunk)
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))
	if c.meter != nil {
		c.meter.Sample(buffer)
	}

	for _, chunk := range chunks {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
