package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
)

const defaultBufferSize = 1024

// Client uses PortAudio's blocking streams. Capture and playback each run a
// goroutine that reads or writes one buffer at a time.
type Client struct {
	capture  *Capture
	playback *Playback
}

func NewClient(bufferSize int) (*Client, error) {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &Client{
		capture:  &Capture{bufferSize: bufferSize, encodingInfo: audio.GetDefaultEncodingInfo()},
		playback: &Playback{bufferSize: bufferSize, mixer: audio.NewMixer(audio.GetDefaultOutputEncodingInfo())},
	}, nil
}

func (c *Client) Capture() *Capture { return c.capture }

func (c *Client) Playback() *Playback { return c.playback }

func (c *Client) Close() error {
	err := errors.Join(c.capture.StopCapture(), c.playback.StopPlayback())
	c.playback.mixer.Close()
	if terminateErr := portaudio.Terminate(); terminateErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to terminate PortAudio: %w", terminateErr))
	}
	return err
}

// streamLoop runs step until stop is closed or step fails.
type streamLoop struct {
	stop chan struct{}
	done chan struct{}
}

func startLoop(name string, step func() error) *streamLoop {
	loop := &streamLoop{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(loop.done)
		for {
			select {
			case <-loop.stop:
				return
			default:
			}
			if err := step(); err != nil {
				log.Printf("PortAudio %s stream failed: %v", name, err)
				return
			}
		}
	}()
	return loop
}

func (l *streamLoop) halt() {
	if l == nil {
		return
	}
	close(l.stop)
	<-l.done
}

type Capture struct {
	bufferSize   int
	encodingInfo audio.EncodingInfo

	mu     sync.Mutex
	stream *portaudio.Stream
	in     []float32
	loop   *streamLoop
}

func (c *Capture) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

func (c *Capture) AcquireCapture(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}

	c.in = make([]float32, c.bufferSize*c.encodingInfo.ChannelCount())
	stream, err := portaudio.OpenDefaultStream(c.encodingInfo.ChannelCount(), 0, float64(c.encodingInfo.SampleRate), c.bufferSize, c.in)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}
	c.stream = stream
	return nil
}

func (c *Capture) StartCapture(_ context.Context, onSamples func([]float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return errors.New("capture stream not acquired")
	} else if c.loop != nil {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	stream, in := c.stream, c.in
	c.loop = startLoop("input", func() error {
		if err := stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return err
		}
		onSamples(in)
		return nil
	})
	return nil
}

func (c *Capture) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}

	var errs []error
	if c.loop != nil {
		// Stopping the stream unblocks a pending Read.
		errs = append(errs, c.stream.Stop())
		c.loop.halt()
		c.loop = nil
	}
	errs = append(errs, c.stream.Close())
	c.stream = nil
	return errors.Join(errs...)
}

// Playback writes the output of an [audio.Mixer] to the default output
// stream.
type Playback struct {
	bufferSize int
	mixer      *audio.Mixer

	mu     sync.Mutex
	stream *portaudio.Stream
	loop   *streamLoop
}

func (p *Playback) EncodingInfo() audio.EncodingInfo { return p.mixer.EncodingInfo() }

func (p *Playback) Now() time.Duration { return p.mixer.Now() }

func (p *Playback) Schedule(buf audio.Buffer, at time.Duration, onEnded func()) (audio.Stoppable, error) {
	voice, err := p.mixer.Schedule(buf, at, onEnded)
	if err != nil {
		return nil, err
	}
	return voice, nil
}

func (p *Playback) StartPlayback(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		return nil
	}

	info := p.mixer.EncodingInfo()
	out := make([]float32, p.bufferSize*info.ChannelCount())
	stream, err := portaudio.OpenDefaultStream(0, info.ChannelCount(), float64(info.SampleRate), p.bufferSize, out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	p.stream = stream
	p.loop = startLoop("output", func() error {
		p.mixer.Render(out)
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return err
		}
		return nil
	})
	return nil
}

func (p *Playback) StopPlayback() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mixer.Reset()
	if p.stream == nil {
		return nil
	}

	p.loop.halt()
	p.loop = nil
	err := errors.Join(p.stream.Stop(), p.stream.Close())
	p.stream = nil
	return err
}
