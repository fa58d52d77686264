// Package whisper provides an STT provider backed by a local whisper.cpp
// server.
//
// whisper.cpp is a batch transcription engine, so the provider simulates
// streaming: incoming PCM is buffered, an energy-based silence detector
// segments utterances, and each completed utterance is submitted to the
// server's POST /inference endpoint. True low-latency partials are not
// possible; a partial carrying the same text is emitted alongside each final
// so activity indicators still move.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("en"),
//	    whisper.WithSilenceWindow(1200*time.Millisecond),
//	)
//	handle, err := p.StartStream(ctx, cfg)
//	handle.SendAudio(pcmChunk)
//	transcript := <-handle.Finals()
//	handle.Close()
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio
	// whisper.cpp expects.
	bitsPerSample = 16

	// defaultRMSThreshold is the root-mean-square energy (in 16-bit PCM
	// units) below which a chunk counts as silence. 32 767 is the maximum;
	// 300 is near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage      = "en"
	defaultSampleRate    = 16000
	defaultSilenceWindow = 1200 * time.Millisecond
	defaultMaxUtterance  = 15 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the server (e.g.,
// "base.en"). When empty the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the server (e.g., "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSilenceWindow sets how much consecutive silence after speech commits the
// accumulated utterance. Shorter windows transcribe sooner but split
// utterances more aggressively. Defaults to 1.2 s.
func WithSilenceWindow(d time.Duration) Option {
	return func(p *Provider) {
		p.silenceWindow = d
	}
}

// WithMaxUtterance caps how much continuous speech may accumulate before a
// flush is forced regardless of silence. Prevents unbounded buffering when a
// speaker never pauses. Defaults to 15 s.
func WithMaxUtterance(d time.Duration) Option {
	return func(p *Provider) {
		p.maxUtterance = d
	}
}

// WithHTTPClient replaces the HTTP client used for inference requests.
// Useful in tests and for custom timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Provider against a whisper.cpp HTTP server.
// Multiple sessions may be open simultaneously; each keeps its own buffer and
// goroutine.
type Provider struct {
	serverURL     string
	model         string
	language      string
	silenceWindow time.Duration
	maxUtterance  time.Duration
	httpClient    *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL (e.g.,
// "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:     strings.TrimRight(serverURL, "/"),
		language:      defaultLanguage,
		silenceWindow: defaultSilenceWindow,
		maxUtterance:  defaultMaxUtterance,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a new transcription session. No network connection is
// made until the first utterance flush, so the only immediate failure mode is
// an already-cancelled context.
//
// cfg.Vocabulary is joined into an initial prompt for the model, which biases
// recognition toward the listed terms.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &session{
		serverURL:     p.serverURL,
		model:         p.model,
		language:      lang,
		prompt:        strings.Join(cfg.Vocabulary, ", "),
		sampleRate:    sr,
		channels:      ch,
		silenceWindow: p.silenceWindow,
		maxUtterance:  p.maxUtterance,
		httpClient:    p.httpClient,

		audioCh:  make(chan []byte, 256),
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 16),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// session is a live whisper transcription session. All mutable buffering and
// silence-detection state is confined to the processLoop goroutine.
type session struct {
	serverURL     string
	model         string
	language      string
	prompt        string
	sampleRate    int
	channels      int
	silenceWindow time.Duration
	maxUtterance  time.Duration
	httpClient    *http.Client

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ stt.SessionHandle = (*session)(nil)

// SendAudio queues a chunk of 16-bit little-endian PCM for silence analysis
// and buffering. Returns an error once the session is closed.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Partials emits one interim transcript per utterance, carrying the same text
// as the corresponding final.
func (s *session) Partials() <-chan stt.Transcript { return s.partials }

// Finals emits authoritative transcripts in utterance order.
func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// Close flushes any buffered speech for a last transcription, closes both
// output channels, and releases resources. Safe to call more than once.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop owns silence detection, utterance buffering, and inference
// dispatch.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer     []byte        // accumulated PCM for the current utterance
		hadSpeech  bool          // true once a high-energy chunk has been buffered
		silence    time.Duration // consecutive silence after speech
		elapsed    time.Duration // audio time consumed so far
		utterStart time.Duration // start timestamp of the current utterance
	)

	bytesPerSecond := s.sampleRate * s.channels * (bitsPerSample / 8)
	maxBufferBytes := int(s.maxUtterance.Seconds() * float64(bytesPerSecond))

	// flush transcribes the current buffer and resets utterance state. The
	// final is delivered blocking (it must not be lost); the matching partial
	// is best-effort.
	flush := func(flushCtx context.Context) {
		if len(buffer) == 0 || !hadSpeech {
			buffer = nil
			hadSpeech = false
			silence = 0
			return
		}

		pcm := buffer
		start := utterStart
		dur := time.Duration(len(pcm)) * time.Second / time.Duration(bytesPerSecond)
		buffer = nil
		hadSpeech = false
		silence = 0

		text, err := s.infer(flushCtx, pcm)
		if err != nil || strings.TrimSpace(text) == "" {
			return
		}
		text = strings.TrimSpace(text)

		select {
		case s.partials <- stt.Transcript{Text: text, Timestamp: start, Duration: dur}:
		default:
		}
		select {
		case s.finals <- stt.Transcript{Text: text, IsFinal: true, Timestamp: start, Duration: dur}:
		case <-s.done:
		}
	}

	// finalFlush runs on shutdown with a fresh context so a cancelled caller
	// context cannot swallow the last utterance.
	finalFlush := func() {
		fc, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		flush(fc)
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return

		case <-s.done:
			finalFlush()
			return

		case chunk := <-s.audioCh:
			chunkDur := time.Duration(len(chunk)) * time.Second / time.Duration(bytesPerSecond)

			if computeRMS(chunk) < defaultRMSThreshold {
				// Silence only matters once speech has started; leading
				// silence is discarded.
				if hadSpeech {
					silence += chunkDur
					buffer = append(buffer, chunk...)
					if silence >= s.silenceWindow {
						flush(ctx)
					}
				}
			} else {
				if !hadSpeech {
					utterStart = elapsed
				}
				hadSpeech = true
				silence = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					flush(ctx)
				}
			}
			elapsed += chunkDur
		}
	}
}

// infer encodes pcm as WAV and POSTs it to /inference as multipart form data.
func (s *session) infer(ctx context.Context, pcm []byte) (string, error) {
	wav := encodeWAV(pcm, s.sampleRate, s.channels)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := map[string]string{
		"language": s.language,
		"model":    s.model,
		"prompt":   s.prompt,
	}
	for name, val := range fields {
		if val == "" {
			continue
		}
		if err := mw.WriteField(name, val); err != nil {
			return "", fmt.Errorf("whisper: write %s field: %w", name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return result.Text, nil
}

// encodeWAV wraps raw 16-bit signed little-endian PCM in a RIFF/WAV container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM sub-chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bitsPerSample))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer, in PCM sample units (0–32 767).
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
