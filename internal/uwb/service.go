package uwb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"uwbd/internal/bus"
	"uwbd/internal/locate"
)

// Config controls the frame producer.
//
// The tag enumerates as a USB CDC serial device (typically
// /dev/ttyUSB*) and streams "mi," CSV frames at 115200 baud.
type Config struct {
	// Device is the serial device path. Ignored when Source is set.
	Device string
	Baud   int

	// ConnectAttempts bounds the open retry budget; exhausting it is
	// the one fatal startup error. ConnectBackoff separates attempts.
	ConnectAttempts int
	ConnectBackoff  time.Duration

	// Period bounds the producer cadence: at most one frame is
	// processed per period.
	Period time.Duration

	// Anchors holds the configured anchor coordinates. Either empty
	// (localization skipped) or exactly one per anchor slot.
	Anchors []locate.Anchor

	// MinDistance/MaxDistance are accepted for forward compatibility
	// with a range sanity check; nothing consumes them yet.
	MinDistance float64
	MaxDistance float64

	// Source overrides the serial device with an arbitrary line
	// stream. Used by tests and file replay.
	Source io.ReadCloser
}

// Snapshot is a point-in-time view of producer health.
type Snapshot struct {
	Device string `json:"device,omitempty"`

	Frames         uint64 `json:"frames"`
	Noise          uint64 `json:"noise"`
	ParseErrors    uint64 `json:"parse_errors"`
	SolverFailures uint64 `json:"solver_failures"`
	BusDrops       uint64 `json:"bus_drops"`
	ReadErrors     uint64 `json:"read_errors"`

	LastTagID     string          `json:"last_tag_id,omitempty"`
	LastTimestamp float64         `json:"last_timestamp,omitempty"`
	LastPosition  locate.Position `json:"last_position"`
	LastError     string          `json:"last_error,omitempty"`
}

// Service reads raw lines from the tag, decodes them, localizes and
// pushes finished samples onto the bus. Per-iteration failures are
// contained; only serial open retry exhaustion is surfaced from Start.
type Service struct {
	cfg    Config
	solver locate.Solver
	out    *bus.Bus[Sample]
	log    *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closer io.Closer
	snap   Snapshot
}

func New(cfg Config, solver locate.Solver, out *bus.Bus[Sample], log *zap.SugaredLogger) (*Service, error) {
	if solver == nil {
		return nil, fmt.Errorf("uwb: solver is nil")
	}
	if out == nil {
		return nil, fmt.Errorf("uwb: bus is nil")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if n := len(cfg.Anchors); n != 0 && n != locate.AnchorSlots {
		return nil, fmt.Errorf("uwb: %d anchors configured, want 0 or %d", n, locate.AnchorSlots)
	}
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 5
	}
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = 500 * time.Millisecond
	}
	if cfg.Period <= 0 {
		cfg.Period = 20 * time.Millisecond
	}
	return &Service{cfg: cfg, solver: solver, out: out, log: log, snap: Snapshot{Device: cfg.Device}}, nil
}

// Start opens the transport and launches the producer loop. It blocks
// only for the connect phase; the loop itself runs until ctx is
// cancelled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("uwb service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	src := s.cfg.Source
	if src == nil {
		f, err := s.openWithRetry(ctx)
		if err != nil {
			return err
		}
		src = f
	}
	s.closer = src

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { _ = src.Close() }()
		s.run(runCtx, src)
	}()
	return nil
}

// Close stops the producer and waits for it to exit.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		// Unblocks a pending read.
		_ = closer.Close()
	}
	s.wg.Wait()
}

// Snapshot returns current producer counters.
func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Service) openWithRetry(ctx context.Context) (io.ReadCloser, error) {
	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		return nil, fmt.Errorf("uwb: serial device is required")
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.ConnectAttempts; attempt++ {
		f, err := openSerial(device, s.cfg.Baud)
		if err == nil {
			s.log.Infow("uwb connected", "device", device, "baud", s.cfg.Baud, "attempt", attempt)
			return f, nil
		}
		lastErr = err
		s.log.Warnw("uwb connect failed", "device", device, "attempt", attempt, "err", err)

		if attempt == s.cfg.ConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.ConnectBackoff):
		}
	}
	return nil, fmt.Errorf("uwb: connect %s failed after %d attempts: %w", device, s.cfg.ConnectAttempts, lastErr)
}

func (s *Service) run(ctx context.Context, src io.Reader) {
	reader := bufio.NewScanner(src)
	// Frames are ~200 bytes; leave headroom for firmware chatter.
	reader.Buffer(make([]byte, 0, 256), 8192)

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !reader.Scan() {
			err := reader.Err()
			if err == nil {
				err = io.EOF
			}
			if ctx.Err() != nil {
				return
			}
			s.recordReadError(err)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				// Source exhausted or yanked; nothing left to read.
				s.log.Infow("uwb source ended", "err", err)
				return
			}
			s.log.Warnw("uwb read failed", "err", err)
			// A scanner does not recover from its error; restart it on
			// the same stream and keep the loop alive.
			reader = bufio.NewScanner(src)
			reader.Buffer(make([]byte, 0, 256), 8192)
			if !s.waitTick(ctx, ticker) {
				return
			}
			continue
		}

		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}

		s.handleLine(line)

		if !s.waitTick(ctx, ticker) {
			return
		}
	}
}

func (s *Service) handleLine(line string) {
	sample, err := Parse(line)
	if err != nil {
		if IsNoise(err) {
			s.bump(func(sn *Snapshot) { sn.Noise++ })
			return
		}
		s.bump(func(sn *Snapshot) {
			sn.ParseErrors++
			sn.LastError = err.Error()
		})
		s.log.Warnw("uwb frame dropped", "err", err, "line", line)
		return
	}

	anchors, dists := locate.Filter(s.cfg.Anchors, sample.Distances)
	pos, err := s.solver.Solve(anchors, dists)
	if err != nil {
		// Soft failure: keep the sample, fall back to the zero position.
		s.bump(func(sn *Snapshot) {
			sn.SolverFailures++
			sn.LastError = err.Error()
		})
		s.log.Warnw("uwb localization failed", "valid_anchors", len(anchors), "err", err)
		pos = locate.Position{}
	}
	sample.Position = pos

	dropped := s.out.TryPush(sample)
	s.bump(func(sn *Snapshot) {
		sn.Frames++
		if dropped {
			sn.BusDrops++
		}
		sn.LastTagID = sample.TagID
		sn.LastTimestamp = sample.Timestamp
		sn.LastPosition = sample.Position
	})
}

func (s *Service) waitTick(ctx context.Context, ticker *time.Ticker) bool {
	select {
	case <-ctx.Done():
		return false
	case <-ticker.C:
		return true
	}
}

func (s *Service) recordReadError(err error) {
	s.bump(func(sn *Snapshot) {
		sn.ReadErrors++
		sn.LastError = err.Error()
	})
}

func (s *Service) bump(f func(*Snapshot)) {
	s.mu.Lock()
	f(&s.snap)
	s.mu.Unlock()
}
