// Package portaudio provides a PortAudio-backed [audio.FrameSource].
//
// Capture runs on PortAudio's real-time callback thread. The callback does
// exactly one thing: encode the sample buffer and offer it to the source's
// [audio.BoundedRelay] with a non-blocking push. It never blocks, never
// waits on the consumer, and never surfaces errors — a full relay costs the
// oldest buffered frame, not callback latency.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/sotto-ai/sotto/pkg/audio"
)

// defaultFramesPerBuffer is the per-callback chunk size in samples per
// channel: 1024 samples at 44.1 kHz is ~23 ms of audio.
const defaultFramesPerBuffer = 1024

// Config describes the device and format to capture.
type Config struct {
	// Device selects the input device by case-insensitive name substring.
	// Empty selects the host's default input device.
	Device string

	// SampleRate in Hz. Zero selects the device's default rate.
	SampleRate int

	// Channels is the capture channel count. Zero selects 2.
	Channels int

	// FramesPerBuffer is the callback chunk size in samples per channel.
	// Zero selects 1024.
	FramesPerBuffer int

	// Relay tunes the two hand-off queue depths.
	Relay audio.RelayConfig
}

// Source implements [audio.FrameSource] on top of a PortAudio input stream.
type Source struct {
	cfg   Config
	relay *audio.BoundedRelay

	mu      sync.Mutex
	stream  *portaudio.Stream
	format  audio.Format
	started bool
	stopped bool

	// samplesCaptured drives frame timestamps without allocating in the
	// callback. Written only by the callback thread.
	samplesCaptured atomic.Int64
}

// Compile-time check that *Source satisfies [audio.FrameSource].
var _ audio.FrameSource = (*Source)(nil)

// New creates a Source for the given device configuration. The device is not
// opened until [Source.Start].
func New(cfg Config) *Source {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = defaultFramesPerBuffer
	}
	return &Source{
		cfg:   cfg,
		relay: audio.NewBoundedRelay(cfg.Relay),
	}
}

// Start initialises PortAudio, opens the configured input device, and begins
// capture. Device-open failure is returned as an error and aborts the start;
// the relay is left stopped in that case.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.New("portaudio: source already started")
	}
	if s.stopped {
		return errors.New("portaudio: source already stopped")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("portaudio: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}

	dev, err := findInputDevice(s.cfg.Device)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}

	rate := s.cfg.SampleRate
	if rate <= 0 {
		rate = int(dev.DefaultSampleRate)
	}
	s.format = audio.Format{SampleRate: rate, Channels: s.cfg.Channels}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: s.cfg.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: s.cfg.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, s.callback)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("portaudio: open device %q: %w", dev.Name, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("portaudio: start stream on %q: %w", dev.Name, err)
	}

	s.stream = stream
	s.started = true
	return nil
}

// callback runs on PortAudio's real-time thread. Its only job is the
// non-blocking relay push.
func (s *Source) callback(in []int16) {
	buf := make([]byte, len(in)*2)
	for i, v := range in {
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}

	captured := s.samplesCaptured.Add(int64(len(in) / s.format.Channels))
	ts := time.Duration(captured) * time.Second / time.Duration(s.format.SampleRate)

	s.relay.TryPush(audio.AudioFrame{
		Data:       buf,
		SampleRate: s.format.SampleRate,
		Channels:   s.format.Channels,
		Timestamp:  ts,
	})
}

// Frames returns the relayed capture stream.
func (s *Source) Frames() <-chan audio.AudioFrame {
	return s.relay.Frames()
}

// Format reports the negotiated capture format. Valid after Start.
func (s *Source) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Stop ends capture, closes the device handle, terminates PortAudio, and
// stops the relay. It is idempotent; every teardown step runs even if an
// earlier one fails, and the first error is returned.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true

	var firstErr error
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("portaudio: stop stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("portaudio: close stream: %w", err)
		}
		s.stream = nil
	}
	if s.started {
		if err := portaudio.Terminate(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("portaudio: terminate: %w", err)
		}
	}
	s.relay.Stop()
	return firstErr
}

// findInputDevice locates an input-capable device whose name contains the
// given substring (case-insensitive), or the default input device when name
// is empty.
func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("portaudio: default input device: %w", err)
		}
		return dev, nil
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	needle := strings.ToLower(name)
	for _, d := range devs {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: no input device matching %q", name)
}

// DeviceInfo describes one input-capable device for CLI listing.
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

// ListInputDevices enumerates all input-capable devices. It initialises and
// terminates PortAudio around the enumeration, so it must not be called while
// a Source is running in the same process.
func ListInputDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}

	var out []DeviceInfo
	for _, d := range devs {
		if d.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return out, nil
}
